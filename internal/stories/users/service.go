package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"gitstar-worker/internal/infra/github"
	"gitstar-worker/internal/metrics"
)

// Service refreshes users from GitHub.
type Service struct {
	storage Storage
	clients ClientProvider
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new user service
func NewService(storage Storage, clients ClientProvider, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clients: clients,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Budget returns the live rate limit counter of tokenUserID's client.
func (s *Service) Budget(ctx context.Context, tokenUserID int64) (Budget, error) {
	client, err := s.clients.ForUser(ctx, tokenUserID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RefreshBudget asks GitHub for tokenUserID's rate limit and returns the
// requests left.
func (s *Service) RefreshBudget(ctx context.Context, tokenUserID int64) (int64, error) {
	client, err := s.clients.ForUser(ctx, tokenUserID)
	if err != nil {
		return 0, err
	}
	if err := client.RefreshRateLimit(ctx); err != nil {
		return 0, fmt.Errorf("refresh rate limit of %d: %w", tokenUserID, err)
	}
	return client.Remaining(), nil
}

// RefreshByID fetches the user with the given id and stores it. A user
// GitHub no longer knows is deleted locally.
func (s *Service) RefreshByID(ctx context.Context, userID, tokenUserID int64) error {
	client, err := s.clients.ForUser(ctx, tokenUserID)
	if err != nil {
		return err
	}

	remote, err := client.User(ctx, userID)
	if errors.Is(err, github.ErrNotFound) {
		s.logger.Info("User disappeared from GitHub, deleting", "user_id", userID)
		return s.storage.DeleteUser(ctx, DeleteCriteria{ID: lo.ToPtr(userID)})
	}
	if err != nil {
		return fmt.Errorf("fetch user %d: %w", userID, err)
	}

	return s.store(ctx, client, remote)
}

// RefreshByLogin is RefreshByID for callers that only know the login.
func (s *Service) RefreshByLogin(ctx context.Context, login string, tokenUserID int64) error {
	client, err := s.clients.ForUser(ctx, tokenUserID)
	if err != nil {
		return err
	}

	remote, err := client.UserByLogin(ctx, login)
	if errors.Is(err, github.ErrNotFound) {
		s.logger.Info("User disappeared from GitHub, deleting", "login", login)
		return s.storage.DeleteUser(ctx, DeleteCriteria{Login: lo.ToPtr(login)})
	}
	if err != nil {
		return fmt.Errorf("fetch user %q: %w", login, err)
	}

	return s.store(ctx, client, remote)
}

func (s *Service) store(ctx context.Context, client *github.Client, remote *github.User) error {
	stars, err := client.StarsOf(ctx, remote.Login)
	if err != nil {
		return fmt.Errorf("count stars of %q: %w", remote.Login, err)
	}

	user, err := s.storage.UpsertUser(ctx, User{
		ID:              remote.ID,
		Login:           remote.Login,
		Type:            remote.Type,
		AvatarURL:       remote.AvatarURL,
		StargazersCount: stars,
		UpdatedAt:       s.now(),
	})
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", remote.ID, err)
	}

	metrics.UsersRefreshed.Inc()
	s.logger.Debug("User refreshed",
		"user_id", user.ID,
		"login", user.Login,
		"stars", user.StargazersCount,
		"api_remaining", client.Remaining())

	return nil
}
