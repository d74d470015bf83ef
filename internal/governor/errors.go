package governor

import (
	"fmt"
	"time"

	"github.com/robalyx/starboard/internal/database/types"
)

// DeniedError is returned when a cooldown or quota denies an operation.
// It unwraps to types.ErrCooldownExceeded or types.ErrQuotaExceeded.
type DeniedError struct {
	Reason     string
	RetryAfter time.Duration
	quota      bool
}

func (e *DeniedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Reason, e.RetryAfter.Round(time.Millisecond))
	}
	return e.Reason
}

// Unwrap returns the sentinel matching the kind of denial.
func (e *DeniedError) Unwrap() error {
	if e.quota {
		return types.ErrQuotaExceeded
	}
	return types.ErrCooldownExceeded
}
