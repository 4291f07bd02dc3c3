package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pantheon/fabrica-util/errors"
)

// DefaultSessionURL is the production session-server endpoint.
const DefaultSessionURL = "https://sessionserver.mojang.com"

// ErrUnverifiedSession is returned when the session server does not know
// about the join attempt, meaning the client never authenticated.
var ErrUnverifiedSession = errors.New("session not verified")

// Authenticator resolves a username plus server hash to a verified profile.
type Authenticator interface {
	HasJoined(ctx context.Context, username, serverHash string) (Profile, error)
}

var _ Authenticator = (*SessionClient)(nil)

// SessionClient verifies logins against the HTTP session server.
type SessionClient struct {
	base   string
	client *http.Client
}

func NewSessionClient(base string, timeout time.Duration) *SessionClient {
	if base == "" {
		base = DefaultSessionURL
	}

	return &SessionClient{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *SessionClient) HasJoined(ctx context.Context, username, serverHash string) (Profile, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("serverId", serverHash)

	target := c.base + "/session/minecraft/hasJoined?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Profile{}, errors.Wrap(err, "build session request failed")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Profile{}, errors.Wrap(err, "session lookup failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, errors.Wrapf(ErrUnverifiedSession, "username=%s status=%d", username, resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, errors.Wrap(err, "decode session profile failed")
	}

	if profile.Name == "" {
		return Profile{}, errors.Wrapf(ErrUnverifiedSession, "empty profile for username=%s", username)
	}

	return profile, nil
}
