package users

import "time"

// User is a GitHub account visited by the star scan.
type User struct {
	ID              int64
	Login           string
	Type            string
	AvatarURL       string
	StargazersCount int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type GetCriteria struct {
	ID    *int64
	Login *string
}

type DeleteCriteria struct {
	ID    *int64
	Login *string
}

// StarScanCriteria selects one star scan batch: users with exactly
// StargazersCount stars and id greater than AfterID, by id ascending.
type StarScanCriteria struct {
	StargazersCount int64
	AfterID         int64
	Limit           int
}
