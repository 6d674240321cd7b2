// Package api implements the HTTP transport for talking to the Goalify
// server: request construction, auth header, status-code classification and
// the tolerant timestamp decoding the sync protocol needs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jiangjiax/goalify-client/internal/logging"
	"github.com/jiangjiax/goalify-client/internal/models"
)

// DefaultTimeout bounds every sync call; a hung request surfaces as
// ErrNetwork instead of blocking the caller.
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the opaque bearer token attached to every request.
// An empty token means no credential is stored.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is the server-facing surface the sync engine depends on.
type Client interface {
	// FetchUpdates returns emotion records modified on the server after since.
	FetchUpdates(ctx context.Context, since time.Time) (*UpdatesResponse, error)

	// PushEmotions uploads a batch of locally-modified records.
	PushEmotions(ctx context.Context, batch []EmotionDTO) error

	// FetchUser returns the authoritative profile, including energy.
	FetchUser(ctx context.Context) (*UserDTO, error)

	// FetchEnergy returns just the energy balance.
	FetchEnergy(ctx context.Context) (int, error)
}

// HTTPClient implements Client over net/http.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	log     logging.Logger
}

func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration, log logging.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *HTTPClient) FetchUpdates(ctx context.Context, since time.Time) (*UpdatesResponse, error) {
	q := url.Values{}
	q.Set("lastSyncDate", models.FormatSyncTime(since))

	body, err := c.do(ctx, http.MethodGet, "/api/v1/sync/updates", q, nil)
	if err != nil {
		return nil, err
	}

	var resp UpdatesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding updates: %v", ErrParse, err)
	}
	return &resp, nil
}

func (c *HTTPClient) PushEmotions(ctx context.Context, batch []EmotionDTO) error {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/sync/emotions", nil, batch)
	if err != nil {
		return err
	}
	// The response body is informational only and never merged back.
	c.log.Debug(ctx, "emotions pushed", "count", len(batch), "response", string(body))
	return nil
}

func (c *HTTPClient) FetchUser(ctx context.Context) (*UserDTO, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp userResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding user: %v", ErrParse, err)
	}
	return &resp.User, nil
}

func (c *HTTPClient) FetchEnergy(ctx context.Context) (int, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/user/energy", nil, nil)
	if err != nil {
		return 0, err
	}

	var resp energyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: decoding energy: %v", ErrParse, err)
	}
	return resp.Energy, nil
}

// do runs one request and returns the raw body on 2xx. All non-2xx statuses
// and transport failures come back classified through the package sentinels.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading auth token: %w", err)
	}
	if token == "" {
		return nil, ErrNoToken
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, c.baseURL)
	}
	u = u.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request: %v", ErrParse, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status >= 400 && status <= 499:
		return fmt.Errorf("%w: status %d: %s", ErrClient, status, errorMessage(body))
	case status >= 500 && status <= 599:
		return fmt.Errorf("%w: status %d: %s", ErrServer, status, errorMessage(body))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnknown, status, errorMessage(body))
	}
}

// errorMessage extracts {"error": "..."} when the server sent one, otherwise
// falls back to the raw body.
func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(body))
}
