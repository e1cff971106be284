// Package oracle talks to the external visual rotation classifier. The
// decision engine treats it as an optional capability and survives any
// failure here by falling back to embedded metadata.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rpattn/drawvault/internal/pdf"
)

// Client calls the classifier service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the classifier at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type detectRequest struct {
	Path string `json:"path"`
	Page int    `json:"page"`
}

// DetectRotation asks the classifier for a rotation verdict on one page.
func (c *Client) DetectRotation(ctx context.Context, path string, page int) (pdf.Verdict, error) {
	body, err := json.Marshal(detectRequest{Path: path, Page: page})
	if err != nil {
		return pdf.Verdict{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rotation", bytes.NewReader(body))
	if err != nil {
		return pdf.Verdict{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pdf.Verdict{}, fmt.Errorf("call rotation oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pdf.Verdict{}, fmt.Errorf("rotation oracle returned %s", resp.Status)
	}

	var verdict pdf.Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return pdf.Verdict{}, fmt.Errorf("decode oracle verdict: %w", err)
	}
	return verdict, nil
}
