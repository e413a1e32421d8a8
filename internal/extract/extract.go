// Package extract turns claim documents into raw text for downstream
// parsing. An empty extraction result is an error: a claim with no text
// cannot be triaged and must be parked in the error status.
package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/harborview/claims-triage/internal/config"
)

// Extractor extracts text content from claim document files.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.ExtractConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocal(), nil
	case "ocr":
		if cfg.OCRKey == "" {
			return nil, eris.New("extract: ocr provider requires ocr_api_key")
		}
		return NewOCRClient(cfg.OCRKey, cfg.OCRModel), nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.Provider)
	}
}
