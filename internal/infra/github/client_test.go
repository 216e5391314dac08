package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves a tiny slice of the REST API.
type fakeGitHub struct {
	remaining atomic.Int64
	calls     atomic.Int64
	repos     int // repositories octocat owns; every third is a fork
}

func newFakeGitHub(t *testing.T, repos int) (*fakeGitHub, *httptest.Server) {
	t.Helper()

	f := &fakeGitHub{repos: repos}
	f.remaining.Store(5000)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"resources":{"search":{"remaining":30},"core":{"limit":5000,"remaining":%d}},"rate":{}}`, f.remaining.Load())
	})
	mux.HandleFunc("GET /user/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !f.spend(w, r) {
			return
		}
		if r.PathValue("id") != "583231" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"login":"octocat","id":583231,"type":"User","avatar_url":"https://avatars/583231","name":null}`)
	})
	mux.HandleFunc("GET /users/{login}", func(w http.ResponseWriter, r *http.Request) {
		if !f.spend(w, r) {
			return
		}
		if !strings.EqualFold(r.PathValue("login"), "octocat") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"login":"octocat","id":583231,"type":"User","avatar_url":"https://avatars/583231"}`)
	})
	mux.HandleFunc("GET /users/{login}/repos", func(w http.ResponseWriter, r *http.Request) {
		if !f.spend(w, r) {
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

		var items []string
		for i := (page - 1) * perPage; i < page*perPage && i < f.repos; i++ {
			items = append(items, fmt.Sprintf(`{"id":%d,"fork":%t,"stargazers_count":2,"owner":{"login":"octocat"}}`, i, i%3 == 2))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(items, ","))
	})
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitHub) spend(w http.ResponseWriter, r *http.Request) bool {
	f.calls.Add(1)
	left := f.remaining.Add(-1)
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
	if r.Header.Get("Authorization") != "token secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func TestClientUser(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeGitHub(t, 0)
	c := NewClient(srv.Client(), srv.URL, "secret", 1)

	u, err := c.User(ctx, 583231)
	require.NoError(t, err)
	assert.Equal(t, &User{ID: 583231, Login: "octocat", Type: "User", AvatarURL: "https://avatars/583231"}, u)

	u, err = c.UserByLogin(ctx, "OctoCat")
	require.NoError(t, err)
	assert.Equal(t, int64(583231), u.ID)

	_, err = c.User(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.UserByLogin(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientTracksRemaining(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeGitHub(t, 0)
	c := NewClient(srv.Client(), srv.URL, "secret", 1)

	assert.Zero(t, c.Remaining())

	require.NoError(t, c.RefreshRateLimit(ctx))
	assert.Equal(t, int64(5000), c.Remaining())

	_, err := c.User(ctx, 583231)
	require.NoError(t, err)
	assert.Equal(t, int64(4999), c.Remaining())

	// a 404 still carries the header
	_, err = c.User(ctx, 2)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(4998), c.Remaining())
}

func TestClientStarsOf(t *testing.T) {
	tests := []struct {
		name      string
		repos     int
		wantStars int64
		wantCalls int64
	}{
		{name: "no repositories", repos: 0, wantStars: 0, wantCalls: 1},
		{name: "single page", repos: 3, wantStars: 4, wantCalls: 1},
		// exactly one full page needs a second, empty request
		{name: "full page", repos: 100, wantStars: 134, wantCalls: 2},
		{name: "several pages", repos: 250, wantStars: 334, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, srv := newFakeGitHub(t, tt.repos)
			c := NewClient(srv.Client(), srv.URL, "secret", 1)

			stars, err := c.StarsOf(context.Background(), "octocat")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStars, stars)
			assert.Equal(t, tt.wantCalls, f.calls.Load())
		})
	}
}

func TestClientUnexpectedStatus(t *testing.T) {
	_, srv := newFakeGitHub(t, 0)
	c := NewClient(srv.Client(), srv.URL, "secret", 1)

	_, err := c.get(context.Background(), "/boom", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "502")
}

func TestDecodeUserRejectsIncompleteUser(t *testing.T) {
	_, err := decodeUser([]byte(`{"login":"octocat"}`))
	require.Error(t, err)

	_, err = decodeUser([]byte(`not json`))
	require.Error(t, err)
}

func TestDecodeRateLimit(t *testing.T) {
	v, err := decodeRateLimit([]byte(`{"resources":{"core":{"remaining":42}}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = decodeRateLimit([]byte(`{"resources":{}}`))
	require.Error(t, err)
}
