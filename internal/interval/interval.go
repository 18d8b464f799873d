// Package interval schedules the next review of a word after an answer.
package interval

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/vocadeck/internal/domain"
)

const (
	// MinInterval and MaxInterval bound every interval a policy produces.
	MinInterval = 3 * time.Minute
	MaxInterval = 30 * 24 * time.Hour

	// BaseInterval is the wait after the first correct answer.
	BaseInterval = 60 * time.Minute
	// MissInterval is the fixed wait after an incorrect answer.
	MissInterval = 30 * time.Minute
	// DefaultInterval is used by the logarithmic policy when no answers exist.
	DefaultInterval = 180 * time.Minute
)

// Policy computes the wait before the next review. Stats passed to Next
// already include the answer being scheduled.
type Policy interface {
	Name() string
	Next(stats domain.DirectionStats, correct bool) time.Duration
}

// ByName returns the policy registered under name.
func ByName(name string) (Policy, error) {
	switch name {
	case "", Exponential{}.Name():
		return Exponential{}, nil
	case Logarithmic{}.Name():
		return Logarithmic{}, nil
	}
	return nil, fmt.Errorf("unknown interval policy %q", name)
}

// Exponential doubles the wait for every lifetime correct answer:
// 60 minutes after the first, 120 after the second, and so on.
// The counter is never reset by a miss.
//
// Next sees CorrectCount after the answer has been counted, so the wait is
// 60 * 2^(CorrectCount-1) minutes. This is one doubling shorter than the
// older 60 * 2^correct rule, which started at 120 minutes.
type Exponential struct{}

func (Exponential) Name() string { return "exponential" }

func (Exponential) Next(stats domain.DirectionStats, correct bool) time.Duration {
	if !correct {
		return MissInterval
	}
	n := stats.CorrectCount - 1
	if n <= 0 {
		return BaseInterval
	}
	// 60 * 2^10 minutes already exceeds MaxInterval.
	if n >= 10 {
		return MaxInterval
	}
	return clamp(BaseInterval << n)
}

// Logarithmic grows the wait with the log of the answer count, weighted by accuracy:
// 180 * log2(total+1) * (0.5 + accuracy) minutes.
type Logarithmic struct{}

func (Logarithmic) Name() string { return "logarithmic" }

func (Logarithmic) Next(stats domain.DirectionStats, _ bool) time.Duration {
	total := stats.Total()
	if total <= 0 {
		return DefaultInterval
	}
	accuracy := float64(stats.CorrectCount) / float64(total)
	minutes := 180 * math.Log2(float64(total+1)) * (0.5 + accuracy)
	minutes = math.Min(math.Max(minutes, MinInterval.Minutes()), MaxInterval.Minutes())
	return clamp(time.Duration(int(minutes)) * time.Minute)
}

// Apply records one answer on stats and schedules the next review from now.
// Near misses are recorded as incorrect by the caller.
func Apply(p Policy, stats domain.DirectionStats, correct bool, now time.Time) domain.DirectionStats {
	if correct {
		stats.CorrectCount++
	} else {
		stats.IncorrectCount++
	}
	reviewed := now
	next := now.Add(p.Next(stats, correct))
	stats.LastReviewedAt = &reviewed
	stats.NextReviewAt = &next
	return stats
}

func clamp(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}
