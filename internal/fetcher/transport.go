package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/tanq16/mrpack-downloader/internal/utils"
)

// Transport copies the body behind one mirror URL into dst. Errors raised by
// dst are returned unchanged so callers can tell write failures apart.
type Transport interface {
	Fetch(ctx context.Context, mirror *url.URL, dst Destination) error
}

// HTTPTransport serves http and https mirrors.
type HTTPTransport struct {
	client *utils.HTTPClient
}

func NewHTTPTransport(cfg utils.HTTPClientConfig) *HTTPTransport {
	return &HTTPTransport{client: utils.NewHTTPClient(cfg)}
}

func (t *HTTPTransport) Fetch(ctx context.Context, mirror *url.URL, dst Destination) error {
	resp, err := t.client.Get(ctx, mirror.String())
	if err != nil {
		return fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	buffer := make([]byte, utils.DefaultBufferSize)
	if _, err := io.CopyBuffer(writerOnly{dst}, resp.Body, buffer); err != nil {
		var we *WriteError
		if errors.As(err, &we) {
			return err
		}
		return fmt.Errorf("error reading response body: %w", err)
	}
	return nil
}

// writerOnly hides a ReaderFrom on dst so every write goes through dst.Write.
type writerOnly struct {
	io.Writer
}
