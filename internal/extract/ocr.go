package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	ocrEndpoint     = "https://api.mistral.ai/v1/ocr"
	defaultOCRModel = "pixtral-large-latest"
)

// OCRClient extracts text from scanned claim documents via the Mistral
// OCR API.
type OCRClient struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewOCRClient creates an OCRClient. If model is empty, the default is used.
func NewOCRClient(apiKey, model string) *OCRClient {
	if model == "" {
		model = defaultOCRModel
	}
	return &OCRClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: ocrEndpoint,
		client:   &http.Client{},
	}
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText reads the document, sends it to the OCR API, and returns
// the concatenated page text. An empty result is an error.
func (o *OCRClient) ExtractText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: read %s", path)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	dataURL := "data:application/pdf;base64," + encoded

	reqBody := ocrRequest{
		Model: o.model,
		Document: ocrDocument{
			Type:        "document_url",
			DocumentURL: dataURL,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", eris.Wrap(err, "extract: marshal ocr request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "extract: create ocr request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "extract: ocr API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "extract: read ocr response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("extract: ocr API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var ocrResp ocrResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return "", eris.Wrap(err, "extract: unmarshal ocr response")
	}

	var sb strings.Builder
	for i, page := range ocrResp.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", eris.Errorf("extract: no text extracted from %s", path)
	}
	return text, nil
}
