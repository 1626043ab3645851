package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type OllamaConfig struct {
	Endpoint    string
	Temperature float64
	MaxTokens   int
	MaxPoolSize int
	PoolTimeout time.Duration
	Timeout     time.Duration
}

type ollamaResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type ollamaClient struct {
	endpoint   string
	cfg        *OllamaConfig
	httpClient *http.Client
}

func (c *ollamaClient) generate(ctx context.Context, modelID string, image []byte, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":  modelID,
		"prompt": prompt,
		"images": []string{base64.StdEncoding.EncodeToString(image)},
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	reqData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(reqData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}
	return result.Response, nil
}

// OllamaBackend bounds concurrent calls to a local Ollama server with a
// fixed pool of clients.
type OllamaBackend struct {
	clients chan *ollamaClient
	cfg     *OllamaConfig
}

func NewOllamaBackend(cfg *OllamaConfig) *OllamaBackend {
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 4
	}
	if cfg.PoolTimeout <= 0 {
		cfg.PoolTimeout = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	b := &OllamaBackend{
		clients: make(chan *ollamaClient, cfg.MaxPoolSize),
		cfg:     cfg,
	}
	for i := 0; i < cfg.MaxPoolSize; i++ {
		b.clients <- &ollamaClient{
			endpoint:   cfg.Endpoint,
			cfg:        cfg,
			httpClient: &http.Client{Timeout: cfg.Timeout},
		}
	}
	return b
}

func (b *OllamaBackend) get(ctx context.Context) (*ollamaClient, error) {
	timer := time.NewTimer(b.cfg.PoolTimeout)
	defer timer.Stop()
	select {
	case c := <-b.clients:
		return c, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for available client")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *OllamaBackend) put(c *ollamaClient) {
	select {
	case b.clients <- c:
	default:
	}
}

func (b *OllamaBackend) Invoke(ctx context.Context, modelID string, image []byte, mimeType, prompt string) (string, error) {
	c, err := b.get(ctx)
	if err != nil {
		return "", err
	}
	defer b.put(c)
	return c.generate(ctx, modelID, image, prompt)
}

func (b *OllamaBackend) Close() error {
	for {
		select {
		case c := <-b.clients:
			c.httpClient.CloseIdleConnections()
		default:
			return nil
		}
	}
}
