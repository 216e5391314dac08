package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/go-faster/errors"

	"gitstar-worker/internal/metrics"
)

const (
	reposPerPage  = 100
	maxReposPages = 100
	userAgent     = "gitstar-worker"
)

var (
	ErrNotFound      = errors.New("github: not found")
	ErrNoAccessToken = errors.New("github: no access token")
)

// User is the subset of a GitHub account the workers store.
type User struct {
	ID        int64
	Login     string
	Type      string
	AvatarURL string
}

// Client calls the GitHub REST API with one user's access token and keeps
// the latest X-RateLimit-Remaining it saw.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	tokenUserID int64
	remaining   atomic.Int64
}

func NewClient(httpClient *http.Client, baseURL, token string, tokenUserID int64) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		token:       token,
		tokenUserID: tokenUserID,
	}
}

// Remaining returns the requests left before throttling as of the last
// response. It never issues a request.
func (c *Client) Remaining() int64 {
	return c.remaining.Load()
}

// RefreshRateLimit reads the core rate limit. It does not count against it.
func (c *Client) RefreshRateLimit(ctx context.Context) error {
	body, err := c.get(ctx, "/rate_limit", nil)
	if err != nil {
		return err
	}

	remaining, err := decodeRateLimit(body)
	if err != nil {
		return errors.Wrap(err, "decode rate limit")
	}
	c.setRemaining(remaining)

	return nil
}

// User fetches an account by its numeric id.
func (c *Client) User(ctx context.Context, id int64) (*User, error) {
	body, err := c.get(ctx, fmt.Sprintf("/user/%d", id), nil)
	if err != nil {
		return nil, err
	}

	u, err := decodeUser(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decode user %d", id)
	}
	return u, nil
}

// UserByLogin fetches an account by login.
func (c *Client) UserByLogin(ctx context.Context, login string) (*User, error) {
	body, err := c.get(ctx, "/users/"+url.PathEscape(login), nil)
	if err != nil {
		return nil, err
	}

	u, err := decodeUser(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decode user %q", login)
	}
	return u, nil
}

// StarsOf sums stargazers over the repositories login owns, forks excluded.
func (c *Client) StarsOf(ctx context.Context, login string) (int64, error) {
	var total int64

	for page := 1; page <= maxReposPages; page++ {
		q := url.Values{}
		q.Set("type", "owner")
		q.Set("per_page", strconv.Itoa(reposPerPage))
		q.Set("page", strconv.Itoa(page))

		body, err := c.get(ctx, "/users/"+url.PathEscape(login)+"/repos", q)
		if err != nil {
			return 0, err
		}

		stars, count, err := decodeRepoStars(body)
		if err != nil {
			return 0, errors.Wrapf(err, "decode repos of %q page %d", login, page)
		}
		total += stars

		if count < reposPerPage {
			break
		}
	}

	return total, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	c.observe(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, errors.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	return body, nil
}

func (c *Client) observe(h http.Header) {
	v := h.Get("X-RateLimit-Remaining")
	if v == "" {
		return
	}
	remaining, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	c.setRemaining(remaining)
}

func (c *Client) setRemaining(v int64) {
	c.remaining.Store(v)
	metrics.RateLimitRemaining.WithLabelValues(strconv.FormatInt(c.tokenUserID, 10)).Set(float64(v))
}
