package jobs

import (
	"errors"
	"time"
)

// NoJob is returned by a claim when no job's lease has expired.
const NoJob int64 = 0

var ErrMalformedPayload = errors.New("malformed update user job payload")

type Kind string

const (
	KindByID   Kind = "by_id"
	KindByName Kind = "by_name"
)

// Payload says which user to refresh and whose access token to spend.
// Exactly one of UserID and UserName is set.
type Payload struct {
	UserID      *int64
	UserName    *string
	TokenUserID int64
}

func (p Payload) Kind() Kind {
	if p.UserID != nil {
		return KindByID
	}
	return KindByName
}

func (p Payload) Validate() error {
	switch {
	case p.UserID != nil && p.UserName != nil:
		return errors.New("both user_id and user_name are set")
	case p.UserID == nil && (p.UserName == nil || *p.UserName == ""):
		return errors.New("neither user_id nor user_name is set")
	case p.UserID != nil && *p.UserID <= 0:
		return errors.New("user_id must be positive")
	case p.TokenUserID <= 0:
		return errors.New("token_user_id must be positive")
	}
	return nil
}

// Job is a row of update_user_jobs. Owner is the claim token of the worker
// holding the lease, nil until the job is first claimed.
type Job struct {
	ID        int64
	Payload   Payload
	Owner     *string
	TimeoutAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
