package scheduling

import (
	"context"
	"time"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
	// SoftDelete marks a live appointment deleted. ErrNotFound when no
	// live row matches.
	SoftDelete(ctx context.Context, businessID, id int64) error
	GetByID(ctx context.Context, businessID, id int64) (*Appointment, error)
	// ListOverlapping returns the provider's live appointments that intersect
	// [from, to).
	ListOverlapping(ctx context.Context, providerID int64, from, to time.Time) ([]*Appointment, error)
	// ListStartingIn returns the business's live appointments whose start
	// falls in [from, to), whatever the provider's current status.
	ListStartingIn(ctx context.Context, businessID int64, from, to time.Time) ([]*Appointment, error)
	// ListDay returns one day's live appointments with display names.
	ListDay(ctx context.Context, businessID int64, day time.Time) ([]*DayAppointment, error)
	CountDay(ctx context.Context, businessID int64, day time.Time) (int, error)
}

type ScheduleRepository interface {
	// ListIntersecting returns every version of the given providers whose
	// validity window intersects [from, to] (dates, inclusive).
	ListIntersecting(ctx context.Context, providerIDs []int64, from, to time.Time) ([]*ProviderSchedule, error)
	CreateMany(ctx context.Context, versions []*ProviderSchedule) error
	// CloseCurrent ends versions in effect on today at yesterday.
	CloseCurrent(ctx context.Context, providerID int64, today time.Time) (int64, error)
	// DeleteNotYetEffective removes versions with validFrom >= today.
	DeleteNotYetEffective(ctx context.Context, providerID int64, today time.Time) (int64, error)
}

// ProviderDirectory answers which providers a business owns.
type ProviderDirectory interface {
	ActiveProviderIDs(ctx context.Context, businessID int64) ([]int64, error)
	ProviderBelongs(ctx context.Context, businessID, providerID int64) (bool, error)
}

// ReferenceChecker validates the optional customer and service of a booking.
type ReferenceChecker interface {
	CustomerBelongs(ctx context.Context, businessID, customerID int64) (bool, error)
	ServiceBelongs(ctx context.Context, businessID, serviceID int64) (bool, error)
}

// Transactor runs writes atomically and serializes them per provider.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockProvider(ctx context.Context, providerID int64) error
}
