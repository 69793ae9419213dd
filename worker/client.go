package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/job"
)

// APIError represents an error response from the backend API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the backend's agent endpoints. All authenticated calls use
// the agent bearer token issued at registration.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an API client. The token may be empty until Register has
// been called.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken swaps in the bearer token issued by Register.
func (c *Client) SetToken(token string) {
	c.token = token
}

// RegisterRequest is the payload for agent registration.
type RegisterRequest struct {
	AgentID  string   `json:"agent_id"`
	Name     string   `json:"name"`
	Browsers []string `json:"browsers"`
	Capacity int      `json:"capacity"`
}

// RegisterResponse carries the created agent and its one-time token.
type RegisterResponse struct {
	Agent *agent.Agent `json:"agent"`
	Token string       `json:"token"`
}

// Register creates the agent record and returns the one-time bearer token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	body, err := c.post(ctx, "/api/v1/agents/register", req)
	if err != nil {
		return nil, err
	}

	var resp RegisterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode register response: %w", err)
	}
	return &resp, nil
}

// HeartbeatRequest refreshes the agent's liveness and self-reported state.
type HeartbeatRequest struct {
	Status   agent.Status `json:"status"`
	Capacity int          `json:"capacity"`
	Browsers []string     `json:"browsers"`
}

// Heartbeat reports liveness.
func (c *Client) Heartbeat(ctx context.Context, req HeartbeatRequest) error {
	_, err := c.post(ctx, "/api/v1/agents/heartbeat", req)
	return err
}

// Poll asks for the next pending job. Returns (nil, nil) when the queue has
// nothing for this agent.
func (c *Client) Poll(ctx context.Context) (*job.Job, error) {
	body, status, err := c.postStatus(ctx, "/api/v1/agents/poll", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}

	var j job.Job
	if err := json.Unmarshal(body, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &j, nil
}

// ResultRequest is the terminal outcome an agent reports for a job.
type ResultRequest struct {
	Status       job.Status  `json:"status"`
	Result       job.JSONMap `json:"result,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// ReportResult completes a claimed job.
func (c *Client) ReportResult(ctx context.Context, jobID uuid.UUID, req ResultRequest) error {
	_, err := c.post(ctx, fmt.Sprintf("/api/v1/agents/jobs/%s/result", jobID), req)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, _, err := c.postStatus(ctx, path, payload)
	return body, err
}

func (c *Client) postStatus(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return body, resp.StatusCode, nil
}
