package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Poster submits one post and returns the id the forum assigned to it.
// Failures are *PublishError.
type Poster interface {
	Post(ctx context.Context, p PostPayload) (string, error)
}

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Username   string
	UserAgent  string
	HTTPClient *http.Client
}

// Client talks to the Discourse REST API with an API key.
type Client struct {
	cfg    ClientConfig
	hc     *http.Client
	logger *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crewai-jobs/1.0 (+discourse)"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{cfg: cfg, hc: hc, logger: logger.Named("discourse")}
}

type createPostResponse struct {
	ID        int64    `json:"id"`
	TopicID   int64    `json:"topic_id"`
	TopicSlug string   `json:"topic_slug"`
	Errors    []string `json:"errors"`
}

type errorResponse struct {
	Errors    []string `json:"errors"`
	ErrorType string   `json:"error_type"`
}

func (c *Client) Post(ctx context.Context, p PostPayload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", &PublishError{Kind: Transient, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/posts.json", bytes.NewReader(body))
	if err != nil {
		return "", &PublishError{Kind: Fatal, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)
	req.Header.Set("Api-Username", c.cfg.Username)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	res, err := c.hc.Do(req)
	if err != nil {
		return "", &PublishError{Kind: Transient, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			// the post exists; a retry would duplicate it
			c.logger.Warn("post created but response unreadable", zap.String("title", p.Title), zap.Error(err))
			return "", nil
		}
		return "", &PublishError{Kind: Transient, StatusCode: res.StatusCode, Err: err}
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		var out createPostResponse
		if err := json.Unmarshal(raw, &out); err != nil || out.ID == 0 {
			c.logger.Warn("post created without an id in the response",
				zap.String("title", p.Title), zap.Int("status", res.StatusCode))
			return "", nil
		}
		c.logger.Debug("post created",
			zap.Int64("post_id", out.ID), zap.Int64("topic_id", out.TopicID), zap.String("slug", out.TopicSlug))
		return strconv.FormatInt(out.ID, 10), nil
	}

	return "", classify(res.StatusCode, res.Header.Get("Retry-After"), raw)
}

// classify maps a non-2xx response onto the publish error taxonomy.
func classify(status int, retryAfter string, body []byte) *PublishError {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	msg := strings.Join(er.Errors, "; ")
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	err := errors.New(msg)

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return &PublishError{Kind: Fatal, StatusCode: status, Err: err}

	case status == http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(msg), "category") {
			return &PublishError{Kind: Fatal, StatusCode: status, Err: err}
		}
		return &PublishError{Kind: Transient, StatusCode: status, Err: err}

	case status == http.StatusTooManyRequests:
		if retryAfter != "" {
			err = fmt.Errorf("%w (retry after %ss)", err, retryAfter)
		}
		return &PublishError{Kind: Transient, StatusCode: status, Err: err}
	}
	return &PublishError{Kind: Transient, StatusCode: status, Err: err}
}
