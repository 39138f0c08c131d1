// Package client keeps a local view of a server-held session in sync.
// Client is the REST transport; View is the per-open-session state
// machine that polls, saves, and dispatches executions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"codeshare/internal/models"
)

var (
	// ErrUnauthorized means the credential was rejected. It is fatal
	// to the current view; the caller must re-authenticate.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the session id is unknown or deleted.
	ErrNotFound = errors.New("not found")
)

// APIError is a server-reported failure that is neither an auth nor a
// missing-session problem (typically validation).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is a bearer-authenticated REST client for the session API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New builds a client for the server at baseURL. token may be empty
// for signup/login calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithToken returns a copy of the client using the given credential.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// AuthResponse is the server's answer to signup and login.
type AuthResponse struct {
	User        models.User `json:"user"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
}

// Signup registers a new account and returns its first token.
func (c *Client) Signup(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the client's token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// CreateSession creates a session with empty code.
func (c *Client) CreateSession(ctx context.Context, title, description string, language models.Language) (*models.Session, error) {
	var session models.Session
	body := map[string]string{"title": title, "description": description, "language": string(language)}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionPage is one page of the session directory.
type SessionPage struct {
	Items []models.SessionSummary `json:"items"`
	Total int                     `json:"total"`
}

// ListSessions fetches one directory page.
func (c *Client) ListSessions(ctx context.Context, limit, offset int) (*SessionPage, error) {
	var page SessionPage
	path := "/api/sessions?" + url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSession fetches the full session, joining the caller as a
// participant.
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+id, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateSession applies a partial overwrite (last writer wins).
func (c *Client) UpdateSession(ctx context.Context, id string, update models.SessionUpdate) (*models.Session, error) {
	var session models.Session
	if err := c.do(ctx, http.MethodPut, "/api/sessions/"+id, update, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes the session outright.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+id, nil, nil)
}

// Execute runs the payload against the session's gateway. The stored
// session is never mutated by a run.
func (c *Client) Execute(ctx context.Context, id string, req models.ExecutionRequest) (models.ExecutionResult, error) {
	var result models.ExecutionResult
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+id+"/execute", req, &result); err != nil {
		return models.ExecutionResult{}, err
	}
	return result, nil
}

// Participants lists who has joined the session.
func (c *Client) Participants(ctx context.Context, id string) ([]models.Participant, error) {
	var resp struct {
		Participants []models.Participant `json:"participants"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+id+"/participants", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
