package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const accessTokensTable = "access_tokens"

// GetAccessToken returns the token userID granted, or nil.
func (s *storageImpl) GetAccessToken(ctx context.Context, userID int64) (*string, error) {
	q, args, err := s.stmpBuilder().
		Select("token").
		From(accessTokensTable).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var token string
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return &token, nil
}

func (s *storageImpl) SaveAccessToken(ctx context.Context, userID int64, token string) error {
	now := s.now()
	q, args, err := s.stmpBuilder().
		Insert(accessTokensTable).
		Columns("user_id", "token", "created_at", "updated_at").
		Values(userID, token, now, now).
		Suffix("ON CONFLICT(user_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}
