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
)

const (
	DefaultHuggingFaceURL   = "https://router.huggingface.co/hf-inference"
	DefaultHuggingFaceModel = "stabilityai/stable-diffusion-xl-base-1.0"
)

// HuggingFace calls the inference API synchronously; the response body is
// the image itself.
type HuggingFace struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewHuggingFace(apiKey, model, baseURL string, timeout time.Duration, client *http.Client) *HuggingFace {
	if model == "" {
		model = DefaultHuggingFaceModel
	}
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	return &HuggingFace{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  client,
	}
}

func (p *HuggingFace) Name() string { return string(models.ProviderHuggingFace) }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (p *HuggingFace) Generate(ctx context.Context, prompt string, opts Options) (*Image, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts = opts.withDefaults()
	body, err := json.Marshal(hfRequest{Inputs: prompt, Parameters: hfParameters{Width: opts.Width, Height: opts.Height}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/models/"+p.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrProviderFailure, err)
	}
	req.Header.Set("Authorization", common.BearerPrefix+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus(p.Name(), resp)
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		return nil, mapStatus(p.Name(), resp)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, mapTransportError(ctx, p.Name(), err)
	}

	return &Image{Bytes: data, ModelID: p.model, ProviderName: p.Name()}, nil
}
