// Package gateway is the HTTP client for the remote exam API. The gateway
// owns the question bank, grading, and session validity; this client only
// fetches the paper, posts the final submission, and exchanges credentials.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/miss-electronics/proctor-agent/internal/model"
)

// Error is a gateway failure with the server's verbatim detail message,
// which is surfaced to the user unchanged.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("gateway returned status %d", e.StatusCode)
}

// Client talks to the remote exam gateway.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a gateway client. baseURL is the API root without a
// trailing slash, e.g. "http://10.37.52.254:8000/api".
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

// FetchExam retrieves the question set and timer for the given user.
// An empty question list is a valid response ("no exam scheduled") and is
// returned as-is for the caller to interpret.
func (c *Client) FetchExam(ctx context.Context, token, user string) (*model.ExamPaper, error) {
	url := fmt.Sprintf("%s/exam/%s/", c.baseURL, user)

	var paper model.ExamPaper
	if err := c.do(ctx, http.MethodGet, url, token, nil, &paper); err != nil {
		return nil, fmt.Errorf("fetch exam: %w", err)
	}

	c.log.Debug().
		Str("user", user).
		Int("questions", len(paper.Questions)).
		Int("timer", paper.Timer).
		Msg("Exam paper fetched")

	return &paper, nil
}

// SubmitExam posts the final submission for the given user.
func (c *Client) SubmitExam(ctx context.Context, token, user string, sub *model.Submission) error {
	url := fmt.Sprintf("%s/exam/%s/submit/", c.baseURL, user)

	if err := c.do(ctx, http.MethodPost, url, token, sub, nil); err != nil {
		return fmt.Errorf("submit exam: %w", err)
	}

	c.log.Info().
		Str("user", user).
		Int("answers", len(sub.SubmittedAnswers)).
		Int("total_warnings", sub.TotalWarnings).
		Msg("Submission accepted by gateway")

	return nil
}

// Login exchanges a username and password for a credential pair.
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	url := c.baseURL + "/login/"

	var resp model.LoginResponse
	req := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, url, "", req, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.Access == "" {
		return nil, &Error{StatusCode: http.StatusOK, Detail: "login succeeded but no access token was returned"}
	}
	return &resp, nil
}

// do performs one JSON request/response round trip. Non-2xx responses are
// converted to *Error carrying the body's "detail" field verbatim.
func (c *Client) do(ctx context.Context, method, url, token string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Detail: extractDetail(raw)}
	}

	if dst != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// extractDetail pulls the "detail" field from an error body, falling back
// to the raw body when it is not the expected JSON shape.
func extractDetail(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return string(bytes.TrimSpace(raw))
}
