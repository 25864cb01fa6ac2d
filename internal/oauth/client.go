package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/vytor/bizquest/internal/config"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
)

type Client struct {
	cfg         *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func New(c config.OAuthConfig) *Client {
	return &Client{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       c.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.AuthURL,
				TokenURL: c.TokenURL,
			},
		},
		userInfoURL: c.UserInfoURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) AuthCodeURL(state string) string {
	return c.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// userInfo covers the common OIDC claims plus the metadata shape some
// providers use for display names.
type userInfo struct {
	Sub               string    `json:"sub"`
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	EmailVerified     claimBool `json:"email_verified"`
	Name              string    `json:"name"`
	FullName          string    `json:"full_name"`
	PreferredUsername string    `json:"preferred_username"`
	Picture           string    `json:"picture"`
	AvatarURL         string    `json:"avatar_url"`
	UserMetadata      struct {
		FullName      string    `json:"full_name"`
		Name          string    `json:"name"`
		AvatarURL     string    `json:"avatar_url"`
		EmailVerified claimBool `json:"email_verified"`
	} `json:"user_metadata"`
}

// claimBool accepts a boolean claim sent either as a JSON bool or as the
// strings "true"/"false", which some providers emit.
type claimBool bool

func (b *claimBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = claimBool(t)
	case string:
		*b = claimBool(strings.EqualFold(t, "true"))
	default:
		*b = false
	}
	return nil
}

func (c *Client) Exchange(ctx context.Context, code string) (*models.ExternalIdentity, error) {
	log := logger.FromContext(ctx).WithPrefix("oauth")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	start := time.Now()
	tok, err := c.cfg.Exchange(ctx, code)
	if err != nil {
		log.Error("code exchange failed: %v", err)
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	log.Debug("code exchanged in %v", time.Since(start))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		log.Error("failed to fetch userinfo: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("userinfo request failed: status=%d, body=%s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, string(body))
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		log.Error("failed to decode userinfo: %v", err)
		return nil, err
	}

	id := &models.ExternalIdentity{
		Subject:           firstNonEmpty(info.Sub, info.ID),
		Email:             strings.ToLower(strings.TrimSpace(info.Email)),
		EmailVerified:     bool(info.EmailVerified || info.UserMetadata.EmailVerified),
		FullName:          firstNonEmpty(info.FullName, info.UserMetadata.FullName),
		Name:              firstNonEmpty(info.Name, info.UserMetadata.Name),
		PreferredUsername: info.PreferredUsername,
		AvatarURL:         firstNonEmpty(info.Picture, info.AvatarURL, info.UserMetadata.AvatarURL),
	}
	if id.Subject == "" {
		return nil, fmt.Errorf("userinfo response has no subject")
	}
	log.Info("identity resolved: subject=%s", id.Subject)
	return id, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
