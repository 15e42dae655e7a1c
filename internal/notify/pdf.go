package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"makerdesk/internal/core"
)

// PDFRenderer produces the invoice document bytes to attach to outbound
// email. Rendering itself is an external collaborator; this package only
// consumes the byte stream.
type PDFRenderer interface {
	Render(ctx context.Context, inv *core.Invoice) ([]byte, error)
}

type pdfServiceClient struct {
	client  *http.Client
	baseURL string
}

// NewPDFRendererFromEnv builds a client for the rendering service at
// PDF_SERVICE_URL.
func NewPDFRendererFromEnv() (PDFRenderer, error) {
	baseURL := os.Getenv("PDF_SERVICE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("PDF_SERVICE_URL is not configured")
	}
	return &pdfServiceClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}, nil
}

func (c *pdfServiceClient) Render(ctx context.Context, inv *core.Invoice) ([]byte, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice for rendering: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render/invoice", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdf render request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf service returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
