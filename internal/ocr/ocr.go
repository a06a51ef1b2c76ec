// Package ocr adapts the external OCR/classification capability
// behind a narrow provider contract: bytes in, text plus a confidence
// score and optional structured fields out.
package ocr

import (
	"context"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tradedocs/internal/config"
)

// Field is one structured field a provider may return alongside text.
type Field struct {
	Name       string
	Value      string
	Confidence float64
}

// Result is the provider's extraction output.
type Result struct {
	Text       string
	Confidence float64
	Fields     []Field
}

// Provider extracts text content from raw document bytes. Failures
// are reported as resilience.ProviderError so the pipeline's retry
// policy can distinguish them from terminal errors.
type Provider interface {
	Extract(ctx context.Context, data []byte, filename string) (*Result, error)
}

// NewProvider creates a Provider based on config.
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	var p Provider
	switch cfg.Kind {
	case "local", "":
		p = NewPdfToText(cfg.PdfToTextPath)
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		p = NewMistralOCR(cfg.MistralKey, cfg.MistralModel)
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Kind)
	}

	if cfg.RatePerSec > 0 {
		p = NewRateLimited(p, cfg.RatePerSec)
	}
	return p, nil
}

// RateLimited wraps a Provider with a token-bucket limiter so bursts
// of concurrent ingestions do not overrun the upstream service.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited provider wrapper.
func NewRateLimited(inner Provider, perSec float64) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// Extract waits for a rate token, then delegates.
func (r *RateLimited) Extract(ctx context.Context, data []byte, filename string) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ocr: rate limit wait")
	}
	return r.inner.Extract(ctx, data, filename)
}

// textConfidence estimates OCR quality from the ratio of printable
// word characters in the output. Empty output scores zero.
func textConfidence(text string) float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	var word, total int
	for _, r := range trimmed {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) {
			word++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(word) / float64(total)
}
