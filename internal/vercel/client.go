// Package vercel implements the HTTP client for the Vercel REST API.
//
// All calls share one pooled, bearer-authenticated connection and funnel
// through a single request primitive. There are no retries and no
// caching: each call is one request, one outcome.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the fixed origin for all Vercel API calls.
	DefaultBaseURL = "https://api.vercel.com"

	// DefaultListLimit applies when a listing call does not specify one.
	DefaultListLimit = 20

	// RequestTimeout aborts a stalled call.
	RequestTimeout = 30 * time.Second

	// MaxIdleConnsPerHost bounds the connection pool.
	MaxIdleConnsPerHost = 5

	// MaxBodyBytes caps how much of an error response body is captured.
	MaxBodyBytes = 1_000_000 // 1 MB
)

// DefaultEnvTargets are the environments an env var applies to when the
// caller does not narrow them.
var DefaultEnvTargets = []string{"production", "preview", "development"}

// DefaultEnvType is the env var type used when none is given.
const DefaultEnvType = "encrypted"

// Client is the Vercel REST API client. It is safe for concurrent use;
// the credential is fixed at construction and never mutated.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the production Vercel API.
func New(token string) (*Client, error) {
	return NewWithBaseURL(token, DefaultBaseURL)
}

// NewWithBaseURL creates a client against a custom origin. Tests use
// this to point the client at a local stub server.
func NewWithBaseURL(token, baseURL string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("vercel access token must not be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}

	// The oauth2 transport injects "Authorization: Bearer <token>" on
	// every request; the base transport bounds idle connection reuse.
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base: &http.Transport{
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		},
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   RequestTimeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// do is the single request primitive every call funnels through. A
// non-2xx status becomes an *APIError carrying the body text; a 2xx
// body that fails to decode becomes a distinct wrapped decode error.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload, out interface{}) error {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodyBytes))
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, endpoint, query, nil, out)
}

// Ping probes the API with a lightweight authenticated request. It
// reports liveness (true only on a 2xx status); a network failure is an
// error, not false, so reachability and liveness stay distinguishable.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/user", nil)
	if err != nil {
		return false, fmt.Errorf("failed to build ping request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to ping vercel API: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodyBytes))

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// ListProjects returns up to limit projects. A limit of zero or less
// uses DefaultListLimit.
func (c *Client) ListProjects(ctx context.Context, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}

	var response struct {
		Projects []Project `json:"projects"`
	}
	if err := c.get(ctx, "/v9/projects", query, &response); err != nil {
		return nil, err
	}
	return response.Projects, nil
}

// GetProject fetches a single project by ID or name.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	if err := c.get(ctx, "/v9/projects/"+url.PathEscape(projectID), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListDeployments returns up to limit deployments, optionally filtered
// by project.
func (c *Client) ListDeployments(ctx context.Context, projectID string, limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if projectID != "" {
		query.Set("projectId", projectID)
	}

	var response struct {
		Deployments []Deployment `json:"deployments"`
	}
	if err := c.get(ctx, "/v6/deployments", query, &response); err != nil {
		return nil, err
	}
	return response.Deployments, nil
}

// GetDeployment fetches a single deployment by ID or URL.
func (c *Client) GetDeployment(ctx context.Context, deploymentID string) (*Deployment, error) {
	var deployment Deployment
	if err := c.get(ctx, "/v13/deployments/"+url.PathEscape(deploymentID), nil, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// DeploymentEvents returns the build/runtime log events for a
// deployment, in the order the API emitted them.
func (c *Client) DeploymentEvents(ctx context.Context, deploymentID string) ([]DeploymentEvent, error) {
	var events []DeploymentEvent
	if err := c.get(ctx, "/v2/deployments/"+url.PathEscape(deploymentID)+"/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetUser fetches the authenticated user as a typed model.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var response struct {
		User User `json:"user"`
	}
	if err := c.get(ctx, "/v2/user", nil, &response); err != nil {
		return nil, err
	}
	return &response.User, nil
}

// UserRaw fetches the authenticated user as raw JSON, preserving
// platform fields the typed model does not capture.
func (c *Client) UserRaw(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/v2/user", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ListEnvVars returns a project's environment variables as raw JSON,
// optionally narrowed to one target environment.
func (c *Client) ListEnvVars(ctx context.Context, projectID, target string) (json.RawMessage, error) {
	var query url.Values
	if target != "" {
		query = url.Values{"target": []string{target}}
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/v9/projects/"+url.PathEscape(projectID)+"/env", query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SetEnvVar creates an environment variable on a project. Empty targets
// default to all standard environments, an empty type to "encrypted".
// The creation result is returned as raw JSON.
func (c *Client) SetEnvVar(ctx context.Context, projectID, key, value string, targets []string, envType string) (json.RawMessage, error) {
	if len(targets) == 0 {
		targets = DefaultEnvTargets
	}
	if envType == "" {
		envType = DefaultEnvType
	}

	payload := map[string]interface{}{
		"key":    key,
		"value":  value,
		"type":   envType,
		"target": targets,
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v10/projects/"+url.PathEscape(projectID)+"/env", nil, payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ListDomains returns a project's domains as raw JSON.
func (c *Client) ListDomains(ctx context.Context, projectID string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/v9/projects/"+url.PathEscape(projectID)+"/domains", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Redeploy creates a fresh deployment from an existing one. The
// deployment result is returned as raw JSON.
func (c *Client) Redeploy(ctx context.Context, deploymentID string) (json.RawMessage, error) {
	query := url.Values{"forceNew": []string{"1"}}
	payload := map[string]interface{}{
		"deploymentId": deploymentID,
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v13/deployments", query, payload, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
