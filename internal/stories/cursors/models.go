package cursors

import "context"

// Key names a scan checkpoint. The set is closed.
type Key string

const (
	// StarScanUserID is the last user id visited at the current star threshold.
	StarScanUserID Key = "star_scan_user_id"
	// StarScanStars is the stargazers_count threshold the star scan is on.
	StarScanStars Key = "star_scan_stars"
)

// StarScanKeys move together: they are written in one transaction and
// cleared together when a sweep finishes.
var StarScanKeys = []Key{StarScanUserID, StarScanStars}

func (k Key) Valid() bool {
	switch k {
	case StarScanUserID, StarScanStars:
		return true
	default:
		return false
	}
}

// Writer upserts cursors inside an open transaction.
type Writer interface {
	WriteCursor(ctx context.Context, key Key, value int64) error
}
