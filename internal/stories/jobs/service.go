package jobs

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"gitstar-worker/internal/metrics"
)

// Service enqueues update user jobs for any worker process to pick up.
type Service struct {
	storage Storage
	waker   Waker
}

// NewService creates a new job service. waker may be nil when no worker runs
// in this process.
func NewService(storage Storage, waker Waker) *Service {
	return &Service{
		storage: storage,
		waker:   waker,
	}
}

// EnqueueByID queues a refresh of the user with the given GitHub id.
func (s *Service) EnqueueByID(ctx context.Context, userID, tokenUserID int64) (int64, error) {
	return s.enqueue(ctx, Payload{UserID: lo.ToPtr(userID), TokenUserID: tokenUserID})
}

// EnqueueByName queues a refresh of the user with the given login.
func (s *Service) EnqueueByName(ctx context.Context, login string, tokenUserID int64) (int64, error) {
	return s.enqueue(ctx, Payload{UserName: lo.ToPtr(login), TokenUserID: tokenUserID})
}

// Enqueue queues a refresh described by an already decoded payload.
func (s *Service) Enqueue(ctx context.Context, payload Payload) (int64, error) {
	return s.enqueue(ctx, payload)
}

func (s *Service) enqueue(ctx context.Context, payload Payload) (int64, error) {
	if err := payload.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	id, err := s.storage.EnqueueUpdateUserJob(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("enqueue update user job: %w", err)
	}
	metrics.JobsEnqueued.Inc()

	if s.waker != nil {
		s.waker.Notify()
	}

	return id, nil
}
