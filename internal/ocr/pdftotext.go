package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradedocs/internal/resilience"
)

// PdfToText extracts text using the pdftotext CLI tool. Plain-text
// documents bypass the binary and are returned as-is.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText provider. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Extract writes the document to a temp file, runs pdftotext -layout,
// and returns stdout with a heuristic confidence.
func (p *PdfToText) Extract(ctx context.Context, data []byte, filename string) (*Result, error) {
	if strings.EqualFold(filepath.Ext(filename), ".txt") {
		text := string(data)
		return &Result{Text: text, Confidence: textConfidence(text)}, nil
	}

	tmp, err := os.CreateTemp("", "tradedocs-*.pdf")
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, eris.Wrap(err, "ocr: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return nil, eris.Wrap(err, "ocr: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", tmp.Name(), "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		wrapped := eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", filename, stderr.String())
		return nil, resilience.NewProviderError(wrapped, 0)
	}

	text := stdout.String()
	return &Result{Text: text, Confidence: textConfidence(text)}, nil
}
