package task

import (
	"fmt"
	"math"
	"time"
)

const followupCount = 3

const dayLayout = "2006-01-02"

// AddDays shifts a YYYY-MM-DD date by the given number of days.
func AddDays(ymd string, days int) (string, error) {
	d, err := time.Parse(dayLayout, ymd)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", ymd, err)
	}
	return d.AddDate(0, 0, days).Format(dayLayout), nil
}

// FollowupPlan computes the three follow-up checkpoint dates for a task:
// roughly 33%, 66% and 90% of the way from the assigned date to the
// deadline, each at least one day after assignment and never on or past the
// deadline itself. Returns nil when either date is missing or malformed.
func FollowupPlan(assigned, deadline string) []string {
	a, err := time.Parse(dayLayout, assigned)
	if err != nil {
		return nil
	}
	dl, err := time.Parse(dayLayout, deadline)
	if err != nil {
		return nil
	}
	totalDays := int(math.Round(dl.Sub(a).Hours() / 24))
	if totalDays < 1 {
		totalDays = 1
	}

	plan := make([]string, 0, followupCount)
	for _, frac := range []float64{0.33, 0.66, 0.9} {
		offset := int(math.Round(float64(totalDays) * frac))
		if offset < 1 {
			offset = 1
		}
		checkpoint := a.AddDate(0, 0, offset)
		if !checkpoint.Before(dl) {
			checkpoint = dl.AddDate(0, 0, -1)
		}
		plan = append(plan, checkpoint.Format(dayLayout))
	}
	return plan
}
