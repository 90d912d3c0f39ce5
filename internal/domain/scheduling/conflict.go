package scheduling

import (
	"context"
	"fmt"
	"time"
)

// Overlaps reports whether half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

type ConflictDetector struct {
	appointments AppointmentRepository
}

func NewConflictDetector(appts AppointmentRepository) *ConflictDetector {
	return &ConflictDetector{appointments: appts}
}

// HasConflict reports whether any live appointment of the provider, other
// than excludeID, overlaps [start, end). Both sides are compared by wall
// clock. It never returns ErrConflict itself.
func (d *ConflictDetector) HasConflict(ctx context.Context, providerID int64, start, end time.Time, excludeID *int64) (bool, error) {
	start, end = WallClock(start), WallClock(end)
	existing, err := d.appointments.ListOverlapping(ctx, providerID, start, end)
	if err != nil {
		return false, fmt.Errorf("list provider appointments: %w", err)
	}
	for _, a := range existing {
		if a.IsDeleted || a.ProviderID != providerID {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if Overlaps(WallClock(a.StartTime), WallClock(a.EndTime), start, end) {
			return true, nil
		}
	}
	return false, nil
}
