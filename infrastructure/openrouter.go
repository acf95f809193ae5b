package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"backend-eval/evaluator"
)

const defaultChatURL = "https://openrouter.ai/api/v1/chat/completions"

// LLMError is returned only after every retry attempt has been exhausted on
// a transport-level failure. Rate-limit exhaustion and unparseable content
// are business outcomes, not errors, and never produce one.
type LLMError struct {
	Attempts int
	Err      error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("openrouter call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// OpenRouterClient wraps the OpenRouter chat completions API with retry,
// backoff and JSON-safe parsing. One instance is constructed at startup and
// shared; the underlying http.Client pools connections.
type OpenRouterClient struct {
	apiKey  string
	chatURL string
	http    *http.Client
	sleep   func(time.Duration) // swapped out in tests
	log     *logrus.Logger
}

func NewOpenRouterClient(apiKey, chatURL string, log *logrus.Logger) *OpenRouterClient {
	if chatURL == "" {
		chatURL = defaultChatURL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OpenRouterClient{
		apiKey:  apiKey,
		chatURL: chatURL,
		http:    &http.Client{Timeout: 60 * time.Second}, // per-attempt cap
		sleep:   time.Sleep,
		log:     log,
	}
}

// Chat calls the chat completions endpoint and normalizes the response into
// a structured mapping.
//
// 429 responses sleep 5x the current delay before retrying; on the final
// attempt they yield {"error":..., "code":429} instead of an error. Any
// other HTTP or transport failure retries with the plain delay and ends in
// *LLMError. The delay starts at one second and grows geometrically by
// opts.BackoffFactor on every retry path.
func (c *OpenRouterClient) Chat(ctx context.Context, model string, messages []evaluator.Message, opts evaluator.ChatOptions) (map[string]interface{}, error) {
	retries := opts.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := opts.BackoffFactor
	if backoff <= 0 {
		backoff = 2
	}

	payload := map[string]interface{}{
		"model":           model,
		"messages":        messages,
		"temperature":     opts.Temperature,
		"max_tokens":      opts.MaxTokens,
		"response_format": map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	delay := time.Second
	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		out, rateLimited, err := c.attempt(ctx, body)
		if err == nil && !rateLimited {
			return out, nil
		}

		if rateLimited {
			if attempt == retries {
				return map[string]interface{}{
					"error": "Rate limited by provider. Please retry later.",
					"code":  429,
				}, nil
			}
			c.log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay * 5}).
				Warn("provider rate limited, backing off")
			c.sleep(delay * 5) // longer backoff for rate limit
			delay = time.Duration(float64(delay) * backoff)
			continue
		}

		lastErr = err
		if attempt == retries {
			return nil, &LLMError{Attempts: retries, Err: err}
		}
		c.log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).
			WithError(err).Warn("provider call failed, retrying")
		c.sleep(delay)
		delay = time.Duration(float64(delay) * backoff)
	}

	return nil, &LLMError{Attempts: retries, Err: lastErr}
}

// attempt performs a single HTTP round trip. rateLimited is reported
// separately because 429 has its own backoff and exhaustion policy.
func (c *OpenRouterClient) attempt(ctx context.Context, body []byte) (out map[string]interface{}, rateLimited bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, snippet(respBody))
	}

	out, err = parseChatResponse(respBody)
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}

// parseChatResponse recovers a structured mapping from the provider
// response. The content may be a native JSON object, a clean JSON string,
// JSON buried in prose or code fences, or free text; only a broken response
// envelope is an error.
func parseChatResponse(body []byte) (map[string]interface{}, error) {
	var meta map[string]interface{}
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	choices, ok := meta["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return nil, fmt.Errorf("provider response has no choices")
	}
	choice, _ := choices[0].(map[string]interface{})
	message, _ := choice["message"].(map[string]interface{})
	content := message["content"]

	// Provider returned native JSON.
	if obj, ok := content.(map[string]interface{}); ok {
		return obj, nil
	}

	if text, ok := content.(string); ok {
		if obj := tryParseJSON(text); obj != nil {
			return obj, nil
		}
	}

	// Not clean JSON, but not our problem either: hand the raw text through
	// and let validation deal with it.
	return map[string]interface{}{"__raw": content, "__meta": meta}, nil
}

// tryParseJSON parses text as a JSON object, falling back to the substring
// between the first '{' and the last '}'.
func tryParseJSON(text string) map[string]interface{} {
	if text == "" {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil
	}
	obj = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
		return obj
	}
	return nil
}

func snippet(b []byte) string {
	const max = 300
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
