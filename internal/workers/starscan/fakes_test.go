package starscan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gitstar-worker/internal/stories/cursors"
	"gitstar-worker/internal/stories/users"
)

var errCrash = errors.New("simulated crash before commit")

type fakeStorage struct {
	mu      sync.Mutex
	users   map[int64]*users.User
	cursors map[cursors.Key]int64

	failCommits int
	listCalls   []users.StarScanCriteria
}

func newFakeStorage(us ...users.User) *fakeStorage {
	s := &fakeStorage{
		users:   make(map[int64]*users.User),
		cursors: make(map[cursors.Key]int64),
	}
	for _, u := range us {
		u := u
		s.users[u.ID] = &u
	}
	return s
}

func (s *fakeStorage) FindCursor(_ context.Context, key cursors.Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[key], nil
}

type stagedWriter struct {
	staged map[cursors.Key]int64
}

func (w *stagedWriter) WriteCursor(_ context.Context, key cursors.Key, value int64) error {
	w.staged[key] = value
	return nil
}

func (s *fakeStorage) WithCursorTx(ctx context.Context, fn func(w cursors.Writer) error) error {
	w := &stagedWriter{staged: make(map[cursors.Key]int64)}
	if err := fn(w); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCommits > 0 {
		s.failCommits--
		return errCrash
	}
	for k, v := range w.staged {
		s.cursors[k] = v
	}
	return nil
}

func (s *fakeStorage) DeleteCursors(_ context.Context, keys []cursors.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.cursors, k)
	}
	return nil
}

func (s *fakeStorage) MaxStargazersCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxStars int64
	for _, u := range s.users {
		maxStars = max(maxStars, u.StargazersCount)
	}
	return maxStars, nil
}

func (s *fakeStorage) NextStargazersCountBelow(_ context.Context, stars int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next int64
	for _, u := range s.users {
		if u.StargazersCount < stars && u.StargazersCount > 0 {
			next = max(next, u.StargazersCount)
		}
	}
	return next, nil
}

func (s *fakeStorage) ListUsersForStarScan(_ context.Context, c users.StarScanCriteria) ([]*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls = append(s.listCalls, c)

	var out []*users.User
	for _, u := range s.users {
		if u.StargazersCount == c.StargazersCount && u.ID > c.AfterID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}

func (s *fakeStorage) GetUser(_ context.Context, c users.GetCriteria) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[*c.ID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStorage) touch(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.UpdatedAt = at
	}
}

func (s *fakeStorage) cursor(key cursors.Key) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cursors[key]
	return v, ok
}

type fakeBudget struct {
	mu        sync.Mutex
	remaining int64
}

func (b *fakeBudget) Remaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

func (b *fakeBudget) set(v int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = v
}

type fakeRefresher struct {
	mu        sync.Mutex
	storage   *fakeStorage
	budget    *fakeBudget
	refreshed []int64
	now       time.Time
	// markFresh makes a refresh bump the user's updated_at like the real one.
	markFresh bool
	onRefresh func(id int64) error
}

func (r *fakeRefresher) RefreshByID(_ context.Context, userID, _ int64) error {
	r.mu.Lock()
	r.refreshed = append(r.refreshed, userID)
	hook := r.onRefresh
	r.mu.Unlock()

	if hook != nil {
		if err := hook(userID); err != nil {
			return err
		}
	}
	if r.markFresh {
		r.storage.touch(userID, r.now)
	}
	return nil
}

func (r *fakeRefresher) Budget(context.Context, int64) (users.Budget, error) {
	return r.budget, nil
}

func (r *fakeRefresher) calls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.refreshed...)
}

type fakeWaker struct {
	ch chan struct{}
}

func (w *fakeWaker) Wait(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-w.ch:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
