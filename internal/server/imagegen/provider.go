// Package imagegen adapts upstream text-to-image backends to one Provider
// interface. Every implementation owns its timeout and maps aborts, auth
// rejections and other upstream failures onto the common sentinels.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/redact"
)

// Options are the requested output dimensions.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions is a square SDXL-native frame.
var DefaultOptions = Options{Width: 1024, Height: 1024}

// Image is raw provider output. Bytes may exceed common.MaxImageBytes by one
// byte, which is how an oversized payload is detected without reading it all.
type Image struct {
	Bytes        []byte
	ModelID      string
	ProviderName string
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts Options) (*Image, error)
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultOptions.Width
	}
	if o.Height <= 0 {
		o.Height = DefaultOptions.Height
	}
	return o
}

// readLimited reads at most common.MaxImageBytes+1 bytes.
func readLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, common.MaxImageBytes+1))
}

// mapTransportError turns an error from an HTTP round trip into a sentinel.
// Any abort, whether our own timeout or the caller going away, is a timeout.
func mapTransportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", common.ErrProviderTimeout, provider)
	}
	return fmt.Errorf("%w: %s: %v", common.ErrProviderFailure, provider, redact.Error(err))
}

// mapStatus converts a non-2xx response into a sentinel error, quoting a
// scrubbed prefix of the body.
func mapStatus(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := redact.Scrub(string(body))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", common.ErrProviderAuthRejected, provider, resp.StatusCode)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s returned %d", common.ErrProviderTimeout, provider, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s returned %d: %s", common.ErrProviderFailure, provider, resp.StatusCode, detail)
}
