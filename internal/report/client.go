package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MimeLyc/taskagent/pkg/log"
)

// Submission is the body posted to the report endpoint
type Submission struct {
	Task   string `json:"task"`
	Answer any    `json:"answer"`
	APIKey string `json:"apikey"`
}

// Response is the endpoint's verdict. Code 0 means the answer was accepted;
// a reply without a code is never taken as acceptance.
type Response struct {
	Code       *int   `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

// Accepted reports whether the endpoint accepted the answer
func (r *Response) Accepted() bool {
	return r != nil && r.Code != nil && *r.Code == 0
}

// CodeString renders the code, or "none" when the reply carried none
func (r *Response) CodeString() string {
	if r == nil || r.Code == nil {
		return "none"
	}
	return strconv.Itoa(*r.Code)
}

// Client submits final answers to a report endpoint
type Client struct {
	http   *resty.Client
	url    string
	apiKey string
}

// NewClient creates a client for url. Submissions are never retried.
func NewClient(url, apiKey string, timeout time.Duration) (*Client, error) {
	if url == "" {
		return nil, errors.New("report url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		url:    url,
		apiKey: apiKey,
	}, nil
}

// Submit posts the answer for task. A non-2xx reply with a decodable body
// still returns the Response so the caller can show the endpoint's message.
func (c *Client) Submit(ctx context.Context, task string, answer any) (*Response, error) {
	log.Info("Submitting answer for task %s", task)

	var out Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(Submission{Task: task, Answer: answer, APIKey: c.apiKey}).
		SetResult(&out).
		SetError(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}
	out.StatusCode = resp.StatusCode()

	if out.Message == "" && resp.IsError() {
		return nil, fmt.Errorf("submit answer: status %d: %s", resp.StatusCode(), resp.String())
	}

	if out.Accepted() {
		log.Info("Answer accepted: %s", out.Message)
	} else {
		log.Warn("Answer rejected (code %s): %s", out.CodeString(), out.Message)
	}
	return &out, nil
}
