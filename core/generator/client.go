package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/optioeducation/optio/core"
)

// maxResponseSize bounds the LLM response body.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

type (
	// Client speaks the OpenAI-compatible chat completions dialect
	// (Gemini's compatibility surface by default).
	Client interface {
		Complete(ctx context.Context, system, prompt string) (string, error)
	}

	httpClient struct {
		conf   core.LLMConfig
		client *http.Client
		logger core.Logger
	}

	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatRequest struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
	}

	chatResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
)

var _ Client = (*httpClient)(nil)

func NewClient(conf core.LLMConfig, logger core.Logger) Client {
	return &httpClient{
		conf:   conf,
		client: &http.Client{Timeout: conf.Timeout},
		logger: logger,
	}
}

// Complete sends a chat completion request; transient failures (429, 5xx,
// network) get a single retry.
func (c *httpClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
		content, retryable, err := c.doRequest(ctx, system, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *httpClient) doRequest(ctx context.Context, system, prompt string) (content string, retryable bool, err error) {
	body, err := json.Marshal(chatRequest{
		Model: c.conf.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", false, errors.Wrap(err, "marshalling chat request")
	}

	url := strings.TrimRight(c.conf.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, errors.Wrap(err, "creating chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.conf.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.conf.APIKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", true, errors.Wrap(err, "sending chat request")
	}
	defer res.Body.Close()

	respBody, err := ioutil.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return "", true, errors.Wrap(err, "reading chat response")
	}

	if res.StatusCode != http.StatusOK {
		msg := string(respBody)
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		err = fmt.Errorf("LLM API error (status %d): %s", res.StatusCode, msg)
		// rate limits and server errors are worth one more try
		return "", res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500, err
	}

	var parsed chatResponse
	if err = json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, errors.Wrap(err, "parsing chat response")
	}
	if len(parsed.Choices) == 0 {
		return "", false, errors.New("empty chat response")
	}
	return parsed.Choices[0].Message.Content, false, nil
}
