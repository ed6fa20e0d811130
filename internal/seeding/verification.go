package seeding

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/furlong/internal/domain/stats"
)

// Summary is the population summary as served by the rating API.
type Summary = stats.Summary

// ErrInconsistent is returned when the service state contradicts what the
// run submitted.
var ErrInconsistent = errors.New("inconsistent service state")

// VerifySummary checks the summary against the number of registered horses
// and the requested top size.
func VerifySummary(s Summary, horses, topN int) error {
	if s.Count != horses {
		return fmt.Errorf("%w: summary counts %d horses, registered %d", ErrInconsistent, s.Count, horses)
	}

	total := 0
	for _, b := range s.Histogram {
		total += b.Count
	}
	if total != s.Count {
		return fmt.Errorf("%w: histogram holds %d of %d horses", ErrInconsistent, total, s.Count)
	}

	if s.MeanConfidence < 0 || s.MeanConfidence > 100 {
		return fmt.Errorf("%w: mean confidence %.2f outside [0, 100]", ErrInconsistent, s.MeanConfidence)
	}

	if want := min(topN, s.Count); len(s.Top) != want {
		return fmt.Errorf("%w: top list has %d entries, want %d", ErrInconsistent, len(s.Top), want)
	}
	for i, e := range s.Top {
		if e.Confidence < 0 || e.Confidence > 100 {
			return fmt.Errorf("%w: %s has confidence %.2f", ErrInconsistent, e.HorseID, e.Confidence)
		}
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrInconsistent, i, e.Rank)
		}
		if i == 0 {
			continue
		}
		prev := s.Top[i-1]
		if e.Rating > prev.Rating || (e.Rating == prev.Rating && e.Confidence > prev.Confidence) {
			return fmt.Errorf("%w: top list out of order at rank %d", ErrInconsistent, e.Rank)
		}
	}
	return nil
}

// verifyTop re-reads every top entry and checks it matches the horse's own
// rating.
func verifyTop(ctx context.Context, c *Client, s Summary) error {
	for _, e := range s.Top {
		r, err := c.Rating(ctx, e.HorseID)
		if err != nil {
			return fmt.Errorf("read %s: %w", e.HorseID, err)
		}
		if r.Rating != e.Rating || r.Confidence != e.Confidence {
			return fmt.Errorf("%w: %s rated %.1f/%.1f in summary but %.1f/%.1f directly",
				ErrInconsistent, e.HorseID, e.Rating, e.Confidence, r.Rating, r.Confidence)
		}
	}
	return nil
}
