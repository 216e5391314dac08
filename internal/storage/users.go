package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"gitstar-worker/internal/stories/users"
)

const usersTable = "users"

var userRowFields = fields(userRow{})

type userRow struct {
	ID              int64     `db:"id"`
	Login           string    `db:"login"`
	Type            string    `db:"type"`
	AvatarURL       string    `db:"avatar_url"`
	StargazersCount int64     `db:"stargazers_count"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (u userRow) ToModel() *users.User {
	return &users.User{
		ID:              u.ID,
		Login:           u.Login,
		Type:            u.Type,
		AvatarURL:       u.AvatarURL,
		StargazersCount: u.StargazersCount,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (s *storageImpl) GetUser(ctx context.Context, criteria users.GetCriteria) (*users.User, error) {
	query := s.stmpBuilder().
		Select(userRowFields).
		From(usersTable).
		Limit(1)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}
	if criteria.Login != nil {
		query = query.Where(sq.Eq{"login": *criteria.Login})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var u userRow
	err = s.db.GetContext(ctx, &u, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return u.ToModel(), nil
}

// UpsertUser stores user keyed by id. A different account that still holds
// the same login (GitHub lets logins be reused) is dropped first.
func (s *storageImpl) UpsertUser(ctx context.Context, user users.User) (*users.User, error) {
	now := s.now()
	updatedAt := user.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := s.stmpBuilder().
			Delete(usersTable).
			Where(sq.Eq{"login": user.Login}).
			Where(sq.NotEq{"id": user.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		q, args, err = s.stmpBuilder().
			Insert(usersTable).
			Columns("id", "login", "type", "avatar_url", "stargazers_count", "created_at", "updated_at").
			Values(user.ID, user.Login, user.Type, user.AvatarURL, user.StargazersCount, now, updatedAt.UTC()).
			Suffix(`ON CONFLICT(id) DO UPDATE SET
				login = excluded.login,
				type = excluded.type,
				avatar_url = excluded.avatar_url,
				stargazers_count = excluded.stargazers_count,
				updated_at = excluded.updated_at`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	id := user.ID
	return s.GetUser(ctx, users.GetCriteria{ID: &id})
}

func (s *storageImpl) DeleteUser(ctx context.Context, criteria users.DeleteCriteria) error {
	if criteria.ID == nil && criteria.Login == nil {
		return errors.New("delete user: empty criteria")
	}

	query := s.stmpBuilder().Delete(usersTable)

	if criteria.ID != nil {
		query = query.Where(sq.Eq{"id": *criteria.ID})
	}
	if criteria.Login != nil {
		query = query.Where(sq.Eq{"login": *criteria.Login})
	}

	q, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

// MaxStargazersCount is where a fresh star scan sweep starts. 0 when there
// are no users.
func (s *storageImpl) MaxStargazersCount(ctx context.Context) (int64, error) {
	q, args, err := s.stmpBuilder().
		Select("COALESCE(MAX(stargazers_count), 0)").
		From(usersTable).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	var stars int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&stars); err != nil {
		return 0, fmt.Errorf("row.Scan: %w", err)
	}
	return stars, nil
}

// NextStargazersCountBelow returns the largest positive stargazers_count
// smaller than stars, or 0 when the sweep has nothing left below it.
func (s *storageImpl) NextStargazersCountBelow(ctx context.Context, stars int64) (int64, error) {
	q, args, err := s.stmpBuilder().
		Select("COALESCE(MAX(stargazers_count), 0)").
		From(usersTable).
		Where(sq.Lt{"stargazers_count": stars}).
		Where(sq.Gt{"stargazers_count": 0}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	var next int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("row.Scan: %w", err)
	}
	return next, nil
}

// ListUsersForStarScan returns users with exactly criteria.StargazersCount
// stars and an id past criteria.AfterID, by id ascending.
func (s *storageImpl) ListUsersForStarScan(ctx context.Context, criteria users.StarScanCriteria) ([]*users.User, error) {
	query := s.stmpBuilder().
		Select(userRowFields).
		From(usersTable).
		Where(sq.Eq{"stargazers_count": criteria.StargazersCount}).
		Where(sq.Gt{"id": criteria.AfterID}).
		OrderBy("id ASC")

	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*users.User, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.ToModel())
	}

	return result, nil
}
