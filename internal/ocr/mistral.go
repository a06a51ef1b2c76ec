package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradedocs/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "pixtral-large-latest"
)

// MistralOCR extracts text from documents using the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewMistralOCR creates a MistralOCR provider. If model is empty, the
// default is used.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{},
	}
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int     `json:"index"`
	Markdown string  `json:"markdown"`
	KVPairs  []kvRow `json:"kv_pairs,omitempty"`
}

type kvRow struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Extract sends the document to Mistral OCR as a base64 data URL and
// returns the concatenated page text plus any structured pairs the
// provider detected. Transport and non-2xx failures come back as
// ProviderError so the stage retry policy applies.
func (m *MistralOCR) Extract(ctx context.Context, data []byte, filename string) (*Result, error) {
	mime := "application/pdf"
	if strings.HasSuffix(strings.ToLower(filename), ".png") {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)

	reqBody := mistralOCRRequest{
		Model: m.model,
		Document: mistralOCRDocument{
			Type:        "document_url",
			DocumentURL: dataURL,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, resilience.NewProviderError(eris.Wrap(err, "ocr: mistral API call"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewProviderError(eris.Wrap(err, "ocr: read mistral response"), 0)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewProviderError(
			eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode,
		)
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal mistral response")
	}

	var sb strings.Builder
	var fields []Field
	for i, page := range ocrResp.Pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
		for _, kv := range page.KVPairs {
			fields = append(fields, Field{Name: kv.Key, Value: kv.Value, Confidence: kv.Confidence})
		}
	}

	text := sb.String()
	return &Result{Text: text, Confidence: textConfidence(text), Fields: fields}, nil
}
