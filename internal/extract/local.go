package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// textExtensions are the document types the local extractor reads
// directly. Anything else goes through the OCR provider.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
	".edi": true,
}

// Local reads plain-text claim documents straight off disk.
type Local struct{}

// NewLocal creates a Local extractor.
func NewLocal() *Local {
	return &Local{}
}

// ExtractText reads the file and returns its contents. Returns an error
// for unsupported extensions, unreadable files, binary content, and
// documents that are empty after trimming whitespace.
func (l *Local) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "extract: context")
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !textExtensions[ext] {
		return "", eris.Errorf("extract: unsupported file type %q (configure the ocr provider for scanned documents)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: read %s", path)
	}
	if !utf8.Valid(data) {
		return "", eris.Errorf("extract: %s is not valid text", path)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", eris.Errorf("extract: no text extracted from %s", path)
	}
	return text, nil
}
