package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reviewradar/internal/adapters/observability"
	"reviewradar/internal/domain"
)

// ErrNoJSON means the completion contained no parseable JSON object.
// Callers treat it like any other scoring failure (retry, then fall
// back to previous scores).
var ErrNoJSON = errors.New("llm: no JSON object in completion")

const scorePrompt = `You rate restaurant reviews. Given the review below, rate it on five dimensions:
taste, service, price, location, hygiene. Each is an integer from 1 (terrible) to 5
(excellent), or 0 if the review does not mention that dimension.
Answer with a single JSON object like {"taste":4,"service":0,"price":3,"location":0,"hygiene":5}
and nothing else.

Review:
%s`

const draftPrompt = `You write short, warm replies from a restaurant owner to customer reviews.
Thank the reviewer, address their main point, and keep it under 60 words. Reply in the
review's language. Do not use placeholders.

Reviewer: %s
Rating: %d/5
Review:
%s`

// Client calls an OpenAI-style chat completion endpoint. It implements
// both domain.Scorer and domain.ReplyDrafter.
type Client struct {
	base  string
	key   string
	model string
	hc    *http.Client
	rl    *rate.Limiter
}

func New(base, key, model string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		key:   key,
		model: model,
		hc:    &http.Client{Timeout: 30 * time.Second},
		rl:    rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (c *Client) Score(ctx context.Context, comment string) (domain.Scores, error) {
	text, err := c.Complete(ctx, fmt.Sprintf(scorePrompt, comment))
	if err != nil {
		return domain.Scores{}, err
	}
	obj, ok := extractJSONObject(text)
	if !ok {
		return domain.Scores{}, ErrNoJSON
	}

	var parsed struct {
		Taste    int `json:"taste"`
		Service  int `json:"service"`
		Price    int `json:"price"`
		Location int `json:"location"`
		Hygiene  int `json:"hygiene"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return domain.Scores{}, ErrNoJSON
	}
	return domain.Scores{
		Taste:    clamp(parsed.Taste),
		Service:  clamp(parsed.Service),
		Price:    clamp(parsed.Price),
		Location: clamp(parsed.Location),
		Hygiene:  clamp(parsed.Hygiene),
	}, nil
}

func (c *Client) Draft(ctx context.Context, r domain.Review) (string, error) {
	name := "a guest"
	if r.ReviewerName != nil && *r.ReviewerName != "" {
		name = *r.ReviewerName
	}
	comment := ""
	if r.Comment != nil {
		comment = *r.Comment
	}
	text, err := c.Complete(ctx, fmt.Sprintf(draftPrompt, name, r.StarRating, comment))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Complete sends one chat completion request and returns the raw
// assistant message content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("llm", "chat/completions", resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm: empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSONObject returns the first balanced {...} in s. Models wrap
// the object in prose or code fences often enough that a plain
// json.Unmarshal of the whole text is not reliable.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func clamp(n int) *int {
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return &n
}
