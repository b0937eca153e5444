package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single analyzer call.
const DefaultTimeout = 30 * time.Second

// Client sends images to the analyzer service over HTTP. Stateless between
// calls; safe for concurrent use.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze posts the image as a multipart field and decodes the verdict.
// Expired deadline, transport failure, non-2xx status and any response not
// shaped exactly like {"isAuthentic": bool, "confidence": 0..1} all collapse
// into ErrAnalysisFailed.
func (c *Client) Analyze(ctx context.Context, image io.Reader, filename string) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrAnalysisFailed, err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("%w: reading image: %v", ErrAnalysisFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrAnalysisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: analyzer returned status %d", ErrAnalysisFailed, resp.StatusCode)
	}

	// Pointer fields so an absent key is distinguishable from a zero value.
	var payload struct {
		IsAuthentic *bool    `json:"isAuthentic"`
		Confidence  *float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrAnalysisFailed, err)
	}
	if payload.IsAuthentic == nil || payload.Confidence == nil {
		return nil, fmt.Errorf("%w: response missing verdict fields", ErrAnalysisFailed)
	}
	if *payload.Confidence < 0 || *payload.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrAnalysisFailed, *payload.Confidence)
	}

	return &Verdict{
		IsAuthentic: *payload.IsAuthentic,
		Confidence:  *payload.Confidence,
	}, nil
}
