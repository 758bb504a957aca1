package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentbridge/pkg/httpclient"
)

// ClientConfig configures a per-agent client.
type ClientConfig struct {
	// Endpoint is the agent's base URL, without trailing slash.
	Endpoint string

	// Token, when set, is sent as a bearer credential on every request.
	Token string

	// CardPath overrides DefaultCardPath for discovery.
	CardPath string

	// HTTPClient overrides the default retrying transport.
	HTTPClient *httpclient.Client

	Timeout time.Duration
}

// Client talks A2A to a single remote agent. One Client is held per
// registered connection; it is safe for concurrent use.
type Client struct {
	endpoint string
	token    string
	cardPath string
	http     *httpclient.Client
}

// NewClient builds a client for the agent at cfg.Endpoint.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	cardPath := cfg.CardPath
	if cardPath == "" {
		cardPath = DefaultCardPath
	}
	if !strings.HasPrefix(cardPath, "/") {
		cardPath = "/" + cardPath
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		hc = httpclient.New(httpclient.WithTimeout(timeout))
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		cardPath: cardPath,
		http:     hc,
	}, nil
}

// Endpoint returns the agent's base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Discover fetches and decodes the agent card.
func (c *Client) Discover(ctx context.Context) (*AgentCard, error) {
	url := c.endpoint + c.cardPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create card request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent card fetch returned HTTP %d from %s", resp.StatusCode, url)
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	if card.Name == "" {
		return nil, fmt.Errorf("agent card from %s has no name", url)
	}

	return &card, nil
}

// SendMessage delivers one message and returns the agent's reply union.
func (c *Client) SendMessage(ctx context.Context, msg Message) (*SendResult, error) {
	var result SendResult
	if err := c.call(ctx, MethodMessageSend, MessageSendParams{Message: msg}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTask polls the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := c.call(ctx, MethodTasksGet, TaskIDParams{ID: taskID}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask requests cancellation and returns the resulting snapshot.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := c.call(ctx, MethodTasksCancel, TaskIDParams{ID: taskID}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
}

// call posts one JSON-RPC request to the agent endpoint and decodes the
// result into out. An error payload from the agent surfaces as
// *RemoteError; everything else is a local transport or decode failure.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request to %s failed: %w", method, c.endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d", method, resp.StatusCode)
	}
	if rpcResp.Result == nil {
		return fmt.Errorf("%s response carries neither result nor error", method)
	}

	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
