package simpleingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// QuotaReader wraps a stream and fails with ErrQuotaExceeded as soon as the
// cumulative number of bytes read exceeds the remaining allowance. The chunk
// that crosses the ceiling is withheld from the caller.
type QuotaReader struct {
	r         io.Reader
	remaining int64
	total     int64
	err       error
}

// NewQuotaReader wraps r with a ceiling of remaining bytes.
func NewQuotaReader(r io.Reader, remaining int64) *QuotaReader {
	return &QuotaReader{r: r, remaining: remaining}
}

func (q *QuotaReader) Read(p []byte) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	n, err := q.r.Read(p)
	if n > 0 {
		q.total += int64(n)
		if q.total > q.remaining {
			q.err = fmt.Errorf("%w: %d bytes read, %d remaining", ErrQuotaExceeded, q.total, q.remaining)
			return 0, q.err
		}
	}
	return n, err
}

// Total returns the bytes read so far
func (q *QuotaReader) Total() int64 {
	return q.total
}

// Close closes the wrapped stream when it is closable.
func (q *QuotaReader) Close() error {
	if c, ok := q.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Remaining computes the owner's remaining byte allowance for the current
// accounting period. limited is false when no active ceiling is configured.
//
// The value is a snapshot: concurrent ingestions by the same user may both
// observe the same allowance.
func Remaining(ctx context.Context, quota QuotaStore, userID uuid.UUID, now time.Time) (remaining int64, limited bool, err error) {
	if quota == nil {
		return 0, false, nil
	}

	limit, err := quota.GetLimit(ctx, userID, LimitSaveContentSize)
	if errors.Is(err, ErrLimitNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get limit: %w", err)
	}
	if limit == nil || !limit.IsActive {
		return 0, false, nil
	}

	var since time.Time
	if limit.Period > 0 {
		since = now.Add(-limit.Period)
	}

	uploaded, err := quota.GetUsageSum(ctx, userID, ActionUpload, since)
	if err != nil {
		return 0, false, fmt.Errorf("sum uploads: %w", err)
	}
	pinned, err := quota.GetUsageSum(ctx, userID, ActionPin, since)
	if err != nil {
		return 0, false, fmt.Errorf("sum pins: %w", err)
	}

	return limit.Value - uploaded - pinned, true, nil
}
