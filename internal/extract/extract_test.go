package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/claims-triage/internal/config"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewExtractor(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.ExtractConfig
		wantErr  string
		wantType any
	}{
		{"default is local", config.ExtractConfig{}, "", &Local{}},
		{"explicit local", config.ExtractConfig{Provider: "local"}, "", &Local{}},
		{"ocr with key", config.ExtractConfig{Provider: "ocr", OCRKey: "k"}, "", &OCRClient{}},
		{"ocr without key", config.ExtractConfig{Provider: "ocr"}, "requires ocr_api_key", nil},
		{"unknown provider", config.ExtractConfig{Provider: "tesseract"}, "unknown provider", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := NewExtractor(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, ex)
		})
	}
}

func TestLocalExtractText(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	path := writeTempFile(t, "claim.txt", "Claim Number: CLM-2026-001\nDescription: rear-end collision")
	text, err := l.ExtractText(ctx, path)
	require.NoError(t, err)
	assert.Contains(t, text, "CLM-2026-001")
}

func TestLocalExtractText_EmptyFileFails(t *testing.T) {
	l := NewLocal()

	path := writeTempFile(t, "empty.txt", "   \n\t\n")
	_, err := l.ExtractText(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text extracted")
}

func TestLocalExtractText_UnsupportedExtension(t *testing.T) {
	l := NewLocal()

	path := writeTempFile(t, "scan.pdf", "%PDF-1.4")
	_, err := l.ExtractText(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestLocalExtractText_MissingFile(t *testing.T) {
	l := NewLocal()

	_, err := l.ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestOCRClientExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pages":[{"index":0,"markdown":"Page one"},{"index":1,"markdown":"Page two"}]}`))
	}))
	defer srv.Close()

	o := NewOCRClient("test-key", "")
	o.endpoint = srv.URL

	path := writeTempFile(t, "scan.pdf", "%PDF-1.4 fake content")
	text, err := o.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Page one\n\nPage two", text)
}

func TestOCRClientExtractText_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOCRClient("test-key", "")
	o.endpoint = srv.URL

	path := writeTempFile(t, "scan.pdf", "%PDF-1.4")
	_, err := o.ExtractText(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOCRClientExtractText_EmptyPagesFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pages":[]}`))
	}))
	defer srv.Close()

	o := NewOCRClient("test-key", "")
	o.endpoint = srv.URL

	path := writeTempFile(t, "scan.pdf", "%PDF-1.4")
	_, err := o.ExtractText(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text extracted")
}
