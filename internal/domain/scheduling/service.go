package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/slotbook/scheduler/internal/platform/events"
)

type Deps struct {
	Appointments AppointmentRepository
	Schedules    ScheduleRepository
	Providers    ProviderDirectory
	References   ReferenceChecker
	Tx           Transactor
	Publisher    events.Publisher
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Service is the booking workflow wrapped around the availability engine.
type Service struct {
	appointments AppointmentRepository
	providers    ProviderDirectory
	refs         ReferenceChecker
	tx           Transactor
	publisher    events.Publisher
	logger       zerolog.Logger

	detector    *ConflictDetector
	resolver    *Resolver
	aggregator  *Aggregator
	days        *DayDetailService
	provisioner *Provisioner
	replacer    *Replacer
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	resolver := NewResolver(d.Schedules)
	return &Service{
		appointments: d.Appointments,
		providers:    d.Providers,
		refs:         d.References,
		tx:           d.Tx,
		publisher:    d.Publisher,
		logger:       d.Logger.With().Str("component", "scheduling").Logger(),
		detector:     NewConflictDetector(d.Appointments),
		resolver:     resolver,
		aggregator:   NewAggregator(d.Providers, d.Appointments, resolver),
		days:         NewDayDetailService(d.Providers, d.Appointments, resolver),
		provisioner:  NewProvisioner(d.Schedules, d.Now),
		replacer:     NewReplacer(d.Providers, d.Schedules, d.Tx, d.Now),
	}
}

// Provisioner is exposed for the provider onboarding workflow.
func (s *Service) Provisioner() *Provisioner { return s.provisioner }

// -- Appointments --

func (in AppointmentInput) wallClock() AppointmentInput {
	in.StartTime = WallClock(in.StartTime)
	in.EndTime = WallClock(in.EndTime)
	return in
}

func validateInput(in AppointmentInput) error {
	if in.ProviderID <= 0 {
		return fmt.Errorf("%w: providerId is required", ErrInvalidInput)
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return fmt.Errorf("%w: startTime and endTime are required", ErrInvalidInput)
	}
	if !in.EndTime.After(in.StartTime) {
		return fmt.Errorf("%w: endTime must be after startTime", ErrInvalidInput)
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, businessID int64, in AppointmentInput) error {
	ok, err := s.providers.ProviderBelongs(ctx, businessID, in.ProviderID)
	if err != nil {
		return fmt.Errorf("check provider: %w", err)
	}
	if !ok {
		return fmt.Errorf("provider %d: %w", in.ProviderID, ErrNotFound)
	}
	if in.CustomerID != nil {
		if ok, err = s.refs.CustomerBelongs(ctx, businessID, *in.CustomerID); err != nil {
			return fmt.Errorf("check customer: %w", err)
		} else if !ok {
			return fmt.Errorf("customer %d: %w", *in.CustomerID, ErrNotFound)
		}
	}
	if in.ServiceID != nil {
		if ok, err = s.refs.ServiceBelongs(ctx, businessID, *in.ServiceID); err != nil {
			return fmt.Errorf("check service: %w", err)
		} else if !ok {
			return fmt.Errorf("service %d: %w", *in.ServiceID, ErrNotFound)
		}
	}
	return nil
}

// Book creates an appointment unless it would overlap a live appointment of
// the same provider. The check and the insert share one transaction holding
// the provider's lock.
func (s *Service) Book(ctx context.Context, businessID int64, in AppointmentInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Book")
	defer span.End()
	span.SetAttributes(attribute.Int64("business.id", businessID), attribute.Int64("provider.id", in.ProviderID))

	in = in.wallClock()
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, businessID, in); err != nil {
		return nil, err
	}

	appt := &Appointment{
		BusinessID: businessID,
		ProviderID: in.ProviderID,
		CustomerID: in.CustomerID,
		ServiceID:  in.ServiceID,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		Notes:      in.Notes,
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockProvider(ctx, in.ProviderID); err != nil {
			return err
		}
		conflict, err := s.detector.HasConflict(ctx, in.ProviderID, in.StartTime, in.EndTime, nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}
		return s.appointments.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AppointmentBooked, businessID, appt.ID, appt)
	return appt, nil
}

// Reschedule moves an existing appointment, excluding itself from the
// conflict check. A zero ProviderID keeps the current provider.
func (s *Service) Reschedule(ctx context.Context, businessID, id int64, in AppointmentInput) (*Appointment, error) {
	current, err := s.appointments.GetByID(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted {
		return nil, fmt.Errorf("appointment %d: %w", id, ErrNotFound)
	}
	if in.ProviderID == 0 {
		in.ProviderID = current.ProviderID
	}
	in = in.wallClock()
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, businessID, in); err != nil {
		return nil, err
	}

	updated := *current
	updated.ProviderID = in.ProviderID
	updated.CustomerID = in.CustomerID
	updated.ServiceID = in.ServiceID
	updated.StartTime = in.StartTime
	updated.EndTime = in.EndTime
	updated.Notes = in.Notes

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.tx.LockProvider(ctx, in.ProviderID); err != nil {
			return err
		}
		conflict, err := s.detector.HasConflict(ctx, in.ProviderID, in.StartTime, in.EndTime, &id)
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}
		return s.appointments.Update(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AppointmentRescheduled, businessID, id, &updated)
	return &updated, nil
}

// Cancel soft-deletes the appointment.
func (s *Service) Cancel(ctx context.Context, businessID, id int64) error {
	if err := s.appointments.SoftDelete(ctx, businessID, id); err != nil {
		return err
	}
	s.publish(ctx, events.AppointmentCancelled, businessID, id, map[string]int64{"id": id})
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, businessID, id int64) (*Appointment, error) {
	return s.appointments.GetByID(ctx, businessID, id)
}

// HasConflict checks a candidate slot for a provider of the business.
func (s *Service) HasConflict(ctx context.Context, businessID, providerID int64, start, end time.Time, excludeID *int64) (bool, error) {
	start, end = WallClock(start), WallClock(end)
	if !end.After(start) {
		return false, fmt.Errorf("%w: end must be after start", ErrInvalidInput)
	}
	ok, err := s.providers.ProviderBelongs(ctx, businessID, providerID)
	if err != nil {
		return false, fmt.Errorf("check provider: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("provider %d: %w", providerID, ErrNotFound)
	}
	return s.detector.HasConflict(ctx, providerID, start, end, excludeID)
}

// -- Calendar --

func (s *Service) Summary(ctx context.Context, businessID int64, startDate, endDate time.Time) ([]DaySummary, error) {
	return s.aggregator.Summary(ctx, businessID, startDate, endDate)
}

func (s *Service) Details(ctx context.Context, q DayQuery) (*DayDetail, error) {
	return s.days.Details(ctx, q)
}

// -- Schedules --

func (s *Service) ensureProvider(ctx context.Context, businessID, providerID int64) error {
	ok, err := s.providers.ProviderBelongs(ctx, businessID, providerID)
	if err != nil {
		return fmt.Errorf("check provider: %w", err)
	}
	if !ok {
		return fmt.Errorf("provider %d: %w", providerID, ErrNotFound)
	}
	return nil
}

// ProviderSchedules lists one provider's versions intersecting [from, to].
func (s *Service) ProviderSchedules(ctx context.Context, businessID, providerID int64, from, to time.Time) ([]*ProviderSchedule, error) {
	if DateOf(to).Before(DateOf(from)) {
		return nil, fmt.Errorf("%w: to is before from", ErrInvalidInput)
	}
	if err := s.ensureProvider(ctx, businessID, providerID); err != nil {
		return nil, err
	}
	return s.resolver.SchedulesIntersecting(ctx, []int64{providerID}, from, to)
}

// ProviderAvailability returns the provider's scheduled minutes on date.
func (s *Service) ProviderAvailability(ctx context.Context, businessID, providerID int64, date time.Time) (int, error) {
	if err := s.ensureProvider(ctx, businessID, providerID); err != nil {
		return 0, err
	}
	minutes, err := s.resolver.MinutesByDayOfWeek(ctx, []int64{providerID}, date)
	if err != nil {
		return 0, err
	}
	return minutes[DateOf(date).Weekday()], nil
}

func (s *Service) ReplaceSchedules(ctx context.Context, businessID, providerID int64, versions []ScheduleInput) ([]*ProviderSchedule, error) {
	created, err := s.replacer.Replace(ctx, businessID, providerID, versions)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.ScheduleReplaced, businessID, providerID, created)
	return created, nil
}

// publish is best effort: the write has already committed.
func (s *Service) publish(ctx context.Context, eventType string, businessID, aggregateID int64, data interface{}) {
	evt, err := events.New(eventType, businessID, aggregateID, data)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Int64("id", aggregateID).Msg("event publish failed")
	}
}

// IsConflict reports whether err is, or wraps, ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
