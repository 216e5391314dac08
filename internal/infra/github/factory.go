package github

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-faster/errors"
)

// TokenStorage looks up the access token a user granted us.
type TokenStorage interface {
	GetAccessToken(ctx context.Context, userID int64) (*string, error)
}

// Factory builds one Client per acting token user and reuses it, so every
// caller spending a token sees the same rate limit counter.
type Factory struct {
	tokens     TokenStorage
	httpClient *http.Client
	baseURL    string

	mu      sync.Mutex
	clients map[int64]*Client
}

func NewFactory(tokens TokenStorage, httpClient *http.Client, baseURL string) *Factory {
	return &Factory{
		tokens:     tokens,
		httpClient: httpClient,
		baseURL:    baseURL,
		clients:    make(map[int64]*Client),
	}
}

// ForUser returns the client acting as tokenUserID. A new client reads its
// rate limit before it is handed out. The lock is not held during I/O; when
// two callers build the same client at once the first one stored wins.
func (f *Factory) ForUser(ctx context.Context, tokenUserID int64) (*Client, error) {
	if c, ok := f.cached(tokenUserID); ok {
		return c, nil
	}

	token, err := f.tokens.GetAccessToken(ctx, tokenUserID)
	if err != nil {
		return nil, errors.Wrapf(err, "load access token of %d", tokenUserID)
	}
	if token == nil {
		return nil, errors.Wrapf(ErrNoAccessToken, "user %d", tokenUserID)
	}

	c := NewClient(f.httpClient, f.baseURL, *token, tokenUserID)
	if err := c.RefreshRateLimit(ctx); err != nil {
		return nil, errors.Wrap(err, "read rate limit")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.clients[tokenUserID]; ok {
		return existing, nil
	}
	f.clients[tokenUserID] = c
	return c, nil
}

func (f *Factory) cached(tokenUserID int64) (*Client, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.clients[tokenUserID]
	return c, ok
}
