package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPConfig configures a remote model server speaking the TensorFlow
// Serving REST predict API.
type HTTPConfig struct {
	URL       string
	ImageSize int
	Timeout   time.Duration
	Client    *http.Client
}

// HTTPPredictor calls a remote model server.
type HTTPPredictor struct {
	url    string
	size   int
	client *http.Client
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
}

// NewHTTPPredictor validates the endpoint and builds the client.
func NewHTTPPredictor(cfg HTTPConfig) (*HTTPPredictor, error) {
	if cfg.URL == "" {
		return nil, errors.New("classifier URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid classifier URL: %w", err)
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = DefaultImageSize
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPPredictor{url: cfg.URL, size: cfg.ImageSize, client: client}, nil
}

func (p *HTTPPredictor) Predict(ctx context.Context, input []float32) ([]float32, error) {
	if len(input) != p.size*p.size*3 {
		return nil, &InvalidImageError{Err: fmt.Errorf("tensor has %d values, want %d", len(input), p.size*p.size*3)}
	}

	body, err := json.Marshal(predictRequest{Instances: [][][][]float32{p.reshape(input)}})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &UnavailableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UnavailableError{Err: fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &InvalidVectorError{Reason: fmt.Sprintf("decode response: %v", err)}
	}
	if len(out.Predictions) == 0 {
		return nil, &InvalidVectorError{Reason: "empty predictions"}
	}
	return out.Predictions[0], nil
}

// reshape turns a flat HWC tensor into [size][size][3].
func (p *HTTPPredictor) reshape(input []float32) [][][]float32 {
	img := make([][][]float32, p.size)
	for y := range img {
		img[y] = make([][]float32, p.size)
		for x := range img[y] {
			off := (y*p.size + x) * 3
			img[y][x] = input[off : off+3]
		}
	}
	return img
}

func (p *HTTPPredictor) ModelID() string { return "remote:" + p.url }

func (p *HTTPPredictor) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
