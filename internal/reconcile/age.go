package reconcile

import (
	"fmt"
	"time"
)

// AgeBucket classifies how long a transaction has been waiting, so the UI can
// escalate the urgency of old unreconciled payments.
type AgeBucket int

const (
	// AgeFresh: posted today.
	AgeFresh AgeBucket = iota
	// AgeRecent: up to 3 days old.
	AgeRecent
	// AgeAging: up to a week old.
	AgeAging
	// AgeStale: up to two weeks old.
	AgeStale
	// AgeOld: older than two weeks.
	AgeOld
)

// AgeDays returns the whole number of days between posting and now, clamped
// at zero for clock skew.
func AgeDays(postingTime int64, now time.Time) int {
	days := int(now.Sub(time.Unix(postingTime, 0)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BucketFor maps an age in days to its bucket.
func BucketFor(days int) AgeBucket {
	switch {
	case days == 0:
		return AgeFresh
	case days <= 3:
		return AgeRecent
	case days <= 7:
		return AgeAging
	case days <= 14:
		return AgeStale
	default:
		return AgeOld
	}
}

// AgeLabel renders an age in days the way cashiers see it.
func AgeLabel(days int) string {
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days < 14:
		return "1 week+"
	case days < 30:
		return fmt.Sprintf("%d weeks", days/7)
	default:
		return fmt.Sprintf("%d month(s)", days/30)
	}
}
