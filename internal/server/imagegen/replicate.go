package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultReplicateURL   = "https://api.replicate.com/v1"
	DefaultReplicateModel = "stability-ai/sdxl:7762fd07cf82c948538e41f63f77d685e02b063e37e496e96eefd46c929f9bdc"
)

// Replicate starts a managed prediction, polls it until it settles and then
// downloads the output URL. Creation goes through the plain client, polling
// and download through the retrying one.
type Replicate struct {
	apiKey       string
	model        string
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
	client       *http.Client
	robust       *retryablehttp.Client
}

func NewReplicate(apiKey, model, baseURL string, timeout time.Duration, client *http.Client, robust *retryablehttp.Client) *Replicate {
	if model == "" {
		model = DefaultReplicateModel
	}
	if baseURL == "" {
		baseURL = DefaultReplicateURL
	}
	return &Replicate{
		apiKey:       apiKey,
		model:        model,
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      timeout,
		pollInterval: time.Second,
		client:       client,
		robust:       robust,
	}
}

func (p *Replicate) Name() string { return string(models.ProviderReplicate) }

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (pr *prediction) settled() bool {
	switch pr.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// outputURL accepts both a bare string and a list of strings.
func (pr *prediction) outputURL() (string, error) {
	var single string
	if err := json.Unmarshal(pr.Output, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(pr.Output, &many); err == nil && len(many) > 0 && many[0] != "" {
		return many[0], nil
	}
	return "", fmt.Errorf("%w: unexpected output format from replicate", common.ErrProviderFailure)
}

// createEndpoint picks the versioned or the model-scoped endpoint depending
// on whether the model id pins a version ("owner/name:version").
func (p *Replicate) createEndpoint() (string, map[string]any) {
	body := map[string]any{}
	if _, version, ok := strings.Cut(p.model, ":"); ok {
		body["version"] = version
		return p.baseURL + "/predictions", body
	}
	return p.baseURL + "/models/" + p.model + "/predictions", body
}

func (p *Replicate) Generate(ctx context.Context, prompt string, opts Options) (*Image, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts = opts.withDefaults()
	pred, err := p.create(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	for !pred.settled() {
		select {
		case <-ctx.Done():
			return nil, mapTransportError(ctx, p.Name(), ctx.Err())
		case <-time.After(p.pollInterval):
		}
		if pred, err = p.poll(ctx, pred.URLs.Get); err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("%w: replicate prediction %s %s", common.ErrProviderFailure, pred.ID, pred.Status)
	}

	url, err := pred.outputURL()
	if err != nil {
		return nil, err
	}

	data, err := p.download(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Image{Bytes: data, ModelID: p.model, ProviderName: p.Name()}, nil
}

func (p *Replicate) create(ctx context.Context, prompt string, opts Options) (*prediction, error) {
	endpoint, body := p.createEndpoint()
	body["input"] = map[string]any{"prompt": prompt, "width": opts.Width, "height": opts.Height}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrProviderFailure, err)
	}
	p.authorize(req.Header)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, mapStatus(p.Name(), resp)
	}
	return decodePrediction(resp)
}

func (p *Replicate) poll(ctx context.Context, url string) (*prediction, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrProviderFailure, err)
	}
	p.authorize(req.Header)

	resp, err := p.robust.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus(p.Name(), resp)
	}
	return decodePrediction(resp)
}

func (p *Replicate) download(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrProviderFailure, err)
	}

	resp, err := p.robust.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus(p.Name(), resp)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, mapTransportError(ctx, p.Name(), err)
	}
	return data, nil
}

func (p *Replicate) authorize(h http.Header) {
	h.Set("Authorization", common.BearerPrefix+p.apiKey)
}

func decodePrediction(resp *http.Response) (*prediction, error) {
	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("%w: decode prediction: %v", common.ErrProviderFailure, err)
	}
	return &pred, nil
}
