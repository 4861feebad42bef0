// Package textgen calls the external text-generation API used by the
// AI chat endpoint, rotating across a pool of quota-limited keys.
package textgen

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
)

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: defaultBaseURL,
		Model:   defaultModel,
		Timeout: 30 * time.Second,
	}
}

// Client generates text via the provider's generateContent endpoint.
type Client struct {
	http *resty.Client
	keys *KeyManager
	cfg  Config
}

func NewClient(keys *KeyManager, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, keys: keys, cfg: cfg}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type candidate struct {
	Content content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error"`
}

// Generate sends prompt to the model and returns the first candidate's
// text. On auth or quota errors the current key is deactivated and the
// next key is tried, until the pool is exhausted.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	for {
		key, err := c.keys.Next()
		if err != nil {
			return "", err
		}

		var out generateResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("key", key).
			SetBody(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}).
			SetResult(&out).
			SetError(&out).
			Post(fmt.Sprintf("/models/%s:generateContent", c.cfg.Model))
		if err != nil {
			return "", fmt.Errorf("failed to call text generation API: %w", err)
		}

		switch resp.StatusCode() {
		case 200:
			if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
				return "", fmt.Errorf("text generation API returned no candidates")
			}
			return out.Candidates[0].Content.Parts[0].Text, nil
		case 401, 403, 429:
			// Key burned for the day, rotate to the next one.
			c.keys.Deactivate(key)
			log.Warn().Int("status", resp.StatusCode()).Msg("rotating text generation API key")
			continue
		default:
			msg := resp.Status()
			if out.Error != nil {
				msg = out.Error.Message
			}
			return "", fmt.Errorf("text generation API error: %s", msg)
		}
	}
}
