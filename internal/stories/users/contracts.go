package users

import (
	"context"

	"gitstar-worker/internal/infra/github"
)

type (
	Storage interface {
		GetUser(ctx context.Context, criteria GetCriteria) (*User, error)
		UpsertUser(ctx context.Context, user User) (*User, error)
		DeleteUser(ctx context.Context, criteria DeleteCriteria) error
	}

	// ClientProvider hands out the GitHub client acting as tokenUserID.
	ClientProvider interface {
		ForUser(ctx context.Context, tokenUserID int64) (*github.Client, error)
	}

	// Budget reports the requests left before GitHub throttles a token.
	Budget interface {
		Remaining() int64
	}
)
