// Package client talks to the BizQuest HTTP API and keeps a per-user cache
// of level progress.
package client

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

	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Token returns the session token in use, if any.
func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	log := logger.FromContext(ctx).WithPrefix("client").WithFields(map[string]any{"method": method, "path": path})

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		log.Error("failed to create request: %v", err)
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("request failed: %v", err)
		return err
	}
	defer resp.Body.Close()
	log.Debug("response received in %v, status=%d", time.Since(start), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Error("failed to decode response: %v", err)
		return err
	}
	return nil
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Login signs in and keeps the returned session token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return out.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{}, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ListLevels(ctx context.Context) ([]models.LevelWithStatus, error) {
	var levels []models.LevelWithStatus
	if err := c.do(ctx, http.MethodGet, "/api/levels", nil, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func (c *Client) GetLevel(ctx context.Context, levelID string) (*models.LevelDetail, error) {
	var d models.LevelDetail
	if err := c.do(ctx, http.MethodGet, "/api/levels/"+url.PathEscape(levelID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) StartLevel(ctx context.Context, levelID string) (*models.Progress, error) {
	var p models.Progress
	body := map[string]any{"status": models.StatusInProgress, "score": 0}
	if err := c.do(ctx, http.MethodPost, "/api/levels/"+url.PathEscape(levelID)+"/progress", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CompleteLevel(ctx context.Context, levelID string, score int) (*models.CompletionResult, error) {
	var r models.CompletionResult
	body := map[string]any{"status": models.StatusCompleted, "score": score}
	if err := c.do(ctx, http.MethodPost, "/api/levels/"+url.PathEscape(levelID)+"/progress", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) Achievements(ctx context.Context) ([]models.UserAchievement, error) {
	var list []models.UserAchievement
	if err := c.do(ctx, http.MethodGet, "/api/achievements", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
