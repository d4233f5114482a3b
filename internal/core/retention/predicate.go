package retention

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// MaxRetentionDays is the largest window expressible as a time.Duration. Larger windows keep
// every post.
const MaxRetentionDays = math.MaxInt64 / int64(day)

// IsEligibleForRemoval reports whether a post created at createdAt has outlived a retention
// window of retentionDays days. A post exactly retentionDays old is kept.
func IsEligibleForRemoval(createdAt time.Time, retentionDays int) bool {
	return EligibleAt(time.Now(), createdAt, retentionDays)
}

// EligibleAt is IsEligibleForRemoval evaluated against an explicit clock reading.
func EligibleAt(now, createdAt time.Time, retentionDays int) bool {
	if retentionDays < 0 || int64(retentionDays) > MaxRetentionDays {
		return false
	}
	return now.Sub(createdAt) > time.Duration(retentionDays)*day
}
