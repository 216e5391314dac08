package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens map[int64]string

func (f fakeTokens) GetAccessToken(_ context.Context, userID int64) (*string, error) {
	if userID < 0 {
		return nil, errors.New("db down")
	}
	token, ok := f[userID]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

func TestFactoryForUser(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeGitHub(t, 0)
	f := NewFactory(fakeTokens{1: "secret"}, srv.Client(), srv.URL)

	c1, err := f.ForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), c1.Remaining(), "new client reads its rate limit")

	c2, err := f.ForUser(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	_, err = f.ForUser(ctx, 2)
	require.ErrorIs(t, err, ErrNoAccessToken)

	_, err = f.ForUser(ctx, -1)
	require.Error(t, err)
}

func TestFactoryDoesNotBlockOtherTokensDuringRateLimitRead(t *testing.T) {
	ctx := context.Background()

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rate_limit", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "token slow" {
			close(slowStarted)
			<-releaseSlow
		}
		fmt.Fprint(w, `{"resources":{"core":{"remaining":100}}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var once sync.Once
	release := func() { once.Do(func() { close(releaseSlow) }) }
	t.Cleanup(release)

	f := NewFactory(fakeTokens{1: "fast", 2: "slow"}, srv.Client(), srv.URL)

	fast, err := f.ForUser(ctx, 1)
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := f.ForUser(ctx, 2)
		slowDone <- err
	}()
	<-slowStarted

	got := make(chan *Client, 1)
	go func() {
		c, _ := f.ForUser(ctx, 1)
		got <- c
	}()

	select {
	case c := <-got:
		assert.Same(t, fast, c)
	case <-time.After(time.Second):
		t.Fatal("cached token lookup waited for another token's rate limit request")
	}

	release()
	require.NoError(t, <-slowDone)
}

func TestFactoryConcurrentBuildsShareOneClient(t *testing.T) {
	_, srv := newFakeGitHub(t, 0)
	f := NewFactory(fakeTokens{1: "secret"}, srv.Client(), srv.URL)

	const callers = 8
	clients := make([]*Client, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.ForUser(context.Background(), 1)
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range clients[1:] {
		assert.Same(t, clients[0], c)
	}
}
