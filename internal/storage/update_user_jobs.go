package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"gitstar-worker/internal/stories/jobs"
)

const updateUserJobsTable = "update_user_jobs"

var updateUserJobRowFields = fields(updateUserJobRow{})

type updateUserJobRow struct {
	ID        int64          `db:"id"`
	Payload   string         `db:"payload"`
	Owner     sql.NullString `db:"owner"`
	TimeoutAt time.Time      `db:"timeout_at"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r updateUserJobRow) ToModel() (*jobs.Job, error) {
	payload, err := jobs.UnmarshalPayload([]byte(r.Payload))
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", r.ID, err)
	}

	job := &jobs.Job{
		ID:        r.ID,
		Payload:   payload,
		TimeoutAt: r.TimeoutAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Owner.Valid {
		job.Owner = &r.Owner.String
	}
	return job, nil
}

// EnqueueUpdateUserJob inserts a job that is claimable as soon as the clock
// moves past now.
func (s *storageImpl) EnqueueUpdateUserJob(ctx context.Context, payload jobs.Payload) (int64, error) {
	data, err := jobs.MarshalPayload(payload)
	if err != nil {
		return 0, err
	}

	now := s.now()
	q, args, err := s.stmpBuilder().
		Insert(updateUserJobsTable).
		SetMap(map[string]interface{}{
			"payload":    string(data),
			"timeout_at": now,
			"created_at": now,
			"updated_at": now,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("result.LastInsertId: %w", err)
	}

	return id, nil
}

// AcquireUpdateUserJob leases the job whose lease expired first to owner
// until the given time and returns its id, or jobs.NoJob.
//
// Selecting the row and taking the lease is one UPDATE statement, so two
// callers can never both get the same row: SQLite runs the subselect and the
// write under the same write lock.
func (s *storageImpl) AcquireUpdateUserJob(ctx context.Context, owner string, until time.Time) (int64, error) {
	now := s.now()

	oldest := s.stmpBuilder().
		Select("id").
		From(updateUserJobsTable).
		Where(sq.Lt{"timeout_at": now}).
		OrderBy("timeout_at ASC", "id ASC").
		Limit(1)

	q, args, err := s.stmpBuilder().
		Update(updateUserJobsTable).
		Set("timeout_at", until.UTC()).
		Set("owner", owner).
		Set("updated_at", now).
		Where(sq.Expr("id = (?)", oldest)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return jobs.NoJob, fmt.Errorf("build sql query: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.NoJob, nil
	}
	if err != nil {
		return jobs.NoJob, fmt.Errorf("row.Scan: %w", err)
	}

	return id, nil
}

// FindOwnedUpdateUserJob re-reads job id that owner claimed until timeoutAt.
// It returns nil when the lease has meanwhile passed to someone else.
func (s *storageImpl) FindOwnedUpdateUserJob(ctx context.Context, id int64, owner string, timeoutAt time.Time) (*jobs.Job, error) {
	q, args, err := s.stmpBuilder().
		Select(updateUserJobRowFields).
		From(updateUserJobsTable).
		Where(sq.Eq{"id": id, "timeout_at": timeoutAt.UTC(), "owner": owner}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var r updateUserJobRow
	err = s.db.GetContext(ctx, &r, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return r.ToModel()
}

// ReleaseUpdateUserJob deletes a processed job.
func (s *storageImpl) ReleaseUpdateUserJob(ctx context.Context, id int64) error {
	q, args, err := s.stmpBuilder().
		Delete(updateUserJobsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

// CountUpdateUserJobs reports the pending and in-flight jobs.
func (s *storageImpl) CountUpdateUserJobs(ctx context.Context) (int64, error) {
	q, args, err := s.stmpBuilder().
		Select("COUNT(*)").
		From(updateUserJobsTable).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("row.Scan: %w", err)
	}
	return n, nil
}
