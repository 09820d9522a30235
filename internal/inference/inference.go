// Package inference talks to the HF-style inference endpoint that runs the
// vision model. One call per capture: resize, encode, POST, decode, clean.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/johnsonhungm/Rad-bull/internal/imaging"
	"github.com/johnsonhungm/Rad-bull/internal/worklog"
)

// DefaultTimeout bounds one inference round trip. Cold endpoint replicas
// can take over a minute to answer the first request.
const DefaultTimeout = 120 * time.Second

// maxErrorBody caps how much of an error response is carried in the error.
const maxErrorBody = 500

// request is the endpoint's expected payload.
type request struct {
	Inputs     requestInputs     `json:"inputs"`
	Parameters requestParameters `json:"parameters"`
}

type requestInputs struct {
	Image string `json:"image"`
	Text  string `json:"text"`
}

type requestParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

// Analysis is the outcome of one inference call. Raw is kept verbatim for
// the audit file even when the cleaned findings turn out unusable.
type Analysis struct {
	// Raw is the generated text exactly as the endpoint returned it.
	Raw string
	// Findings is Raw after prompt-echo stripping and paragraph
	// truncation, the text that goes into the report.
	Findings string
}

// Client calls the inference endpoint.
type Client struct {
	Endpoint string
	Token    string
	Prompt   string
	MaxDim   int
	HTTP     *http.Client
	Log      *slog.Logger
}

// NewClient returns a Client with the default prompt, resize bound and
// timeout.
func NewClient(endpoint, token string, log *slog.Logger) *Client {
	return &Client{
		Endpoint: endpoint,
		Token:    token,
		Prompt:   DefaultPrompt,
		MaxDim:   imaging.MaxDimension,
		HTTP:     &http.Client{Timeout: DefaultTimeout},
		Log:      log,
	}
}

// Analyze sends the capture to the endpoint and returns the generated
// text. When the model produces nothing usable the returned error is
// ErrEmptyGeneration and Analysis.Raw still carries whatever came back, so
// the caller can audit it.
func (c *Client) Analyze(ctx context.Context, img image.Image) (Analysis, error) {
	log := c.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	resized := imaging.FitWithin(img, c.MaxDim)
	if rb, ob := resized.Bounds(), img.Bounds(); rb != ob {
		log.Info(fmt.Sprintf("Resized image to %dx%d", rb.Dx(), rb.Dy()))
	}
	pngData, err := imaging.EncodePNG(resized)
	if err != nil {
		return Analysis{}, err
	}
	b64 := base64.StdEncoding.EncodeToString(pngData)
	log.Info(fmt.Sprintf("Base64 payload size: %d KB", len(b64)/1024))

	body, err := json.Marshal(request{
		Inputs: requestInputs{Image: b64, Text: c.Prompt},
		Parameters: requestParameters{
			MaxNewTokens: 1000,
			Temperature:  0.2,
		},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("marshal payload: %w", err)
	}

	log.Info("Sending capture to inference endpoint", "url", c.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Analysis{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("call inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Analysis{}, fmt.Errorf("inference endpoint returned %s: %s", resp.Status, detail)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Analysis{}, fmt.Errorf("read response: %w", err)
	}
	log.Info("Raw response", "preview", worklog.Sanitize(string(respBody), 300))

	raw, err := DecodeResponse(respBody)
	if err != nil {
		return Analysis{}, err
	}

	findings := Clean(raw, c.Prompt)
	if findings == "" {
		return Analysis{Raw: raw}, fmt.Errorf("%w after cleanup", ErrEmptyGeneration)
	}
	return Analysis{Raw: raw, Findings: findings}, nil
}
