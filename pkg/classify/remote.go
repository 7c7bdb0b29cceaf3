package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RemoteConfig holds configuration for the remote classifier.
type RemoteConfig struct {
	BaseURL string // OpenAI-compatible API base URL
	APIKey  string // API key (optional for local providers)
	Model   string // Vision model name
	Labels  []string
	Timeout time.Duration
	Logger  *slog.Logger
}

// RemoteOption is a functional option for configuring the remote classifier.
type RemoteOption func(*RemoteConfig)

// WithBaseURL sets the API base URL.
// Examples: "https://api.openai.com/v1", "http://localhost:11434/v1"
func WithBaseURL(url string) RemoteOption {
	return func(c *RemoteConfig) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) RemoteOption {
	return func(c *RemoteConfig) { c.APIKey = key }
}

// WithModel sets the vision model.
func WithModel(model string) RemoteOption {
	return func(c *RemoteConfig) { c.Model = model }
}

// WithLabels sets the class labels. Their order defines the class
// ordering of every Result; the remote model never changes it.
func WithLabels(labels ...string) RemoteOption {
	return func(c *RemoteConfig) { c.Labels = labels }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(c *RemoteConfig) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(c *RemoteConfig) { c.Logger = l }
}

// DefaultRemoteConfig returns sensible defaults for OpenAI.
func DefaultRemoteConfig() *RemoteConfig {
	return &RemoteConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Labels:  []string{"Closed", "Open"},
		Timeout: 30 * time.Second,
		Logger:  slog.Default(),
	}
}

// Remote classifies frames through any OpenAI-compatible vision API
// (OpenAI, Ollama, vLLM, Together, etc.).
type Remote struct {
	baseURL string
	apiKey  string
	config  *RemoteConfig
	http    *http.Client
	logger  *slog.Logger
}

// NewRemote creates a new remote classifier.
func NewRemote(opts ...RemoteOption) (*Remote, error) {
	cfg := DefaultRemoteConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Labels) == 0 {
		return nil, fmt.Errorf("%w: no labels configured", ErrModelLoad)
	}

	return &Remote{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "classify.remote"),
	}, nil
}

// Classify sends the frame to the vision API and parses the returned
// per-label probabilities. The result follows the configured label order.
func (r *Remote) Classify(ctx context.Context, frame []byte) (Result, error) {
	start := time.Now()

	payload := r.buildPayload(frame)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, r.parseError(resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	probs, err := parseProbabilities(result.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	out := make(Result, len(r.config.Labels))
	for i, label := range r.config.Labels {
		out[i] = Entry{Label: label, Probability: probs[strings.ToLower(label)]}
	}

	r.logger.Debug("remote classification",
		"latency_ms", time.Since(start).Milliseconds(),
		"labels", len(out))

	return out, nil
}

// Labels returns the configured class labels.
func (r *Remote) Labels() []string {
	return r.config.Labels
}

// Close is a no-op for the HTTP backend.
func (r *Remote) Close() error {
	return nil
}

func (r *Remote) buildPayload(frame []byte) map[string]any {
	prompt := fmt.Sprintf(
		"Classify this image into the classes %s. Respond with only a JSON "+
			"object mapping each class name to its probability in [0,1].",
		strings.Join(r.config.Labels, ", "))

	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)

	return map[string]any{
		"model": r.config.Model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
				},
			},
		},
		"max_tokens": 128,
	}
}

func (r *Remote) parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &apiResp); err == nil && apiResp.Error.Message != "" {
		msg = apiResp.Error.Message
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// parseProbabilities extracts a label->probability map from the model's
// reply, tolerating markdown code fences around the JSON.
func parseProbabilities(content string) (map[string]float64, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i >= 0 {
		if j := strings.LastIndex(content, "}"); j > i {
			content = content[i : j+1]
		}
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse probabilities: %w", err)
	}

	probs := make(map[string]float64, len(raw))
	for label, p := range raw {
		probs[strings.ToLower(label)] = p
	}
	return probs, nil
}
