package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/slotbook/scheduler/internal/domain/scheduling")

// MaxSummaryDays bounds a calendar summary request.
const MaxSummaryDays = 366

type Aggregator struct {
	providers    ProviderDirectory
	appointments AppointmentRepository
	resolver     *Resolver
}

func NewAggregator(providers ProviderDirectory, appts AppointmentRepository, resolver *Resolver) *Aggregator {
	return &Aggregator{providers: providers, appointments: appts, resolver: resolver}
}

type dayTotals struct {
	count    int
	occupied int
}

// Summary returns one row per calendar day in [startDate, endDate], in date
// order. Appointments are attributed to the date they start on. Once the
// business has an active provider, every live appointment counts, including
// those of deactivated providers; scheduled minutes come from active
// providers only. No active provider yields zeroed rows.
func (a *Aggregator) Summary(ctx context.Context, businessID int64, startDate, endDate time.Time) ([]DaySummary, error) {
	start, end := DateOf(startDate), DateOf(endDate)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidInput,
			end.Format(dateLayout), start.Format(dateLayout))
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > MaxSummaryDays {
		return nil, fmt.Errorf("%w: range of %d days exceeds %d", ErrInvalidInput, days, MaxSummaryDays)
	}

	ctx, span := tracer.Start(ctx, "scheduling.Summary")
	defer span.End()
	span.SetAttributes(attribute.Int64("business.id", businessID), attribute.Int("days", days))

	providerIDs, err := a.providers.ActiveProviderIDs(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	out := make([]DaySummary, 0, days)
	if len(providerIDs) == 0 {
		for i := 0; i < days; i++ {
			out = append(out, DaySummary{Date: Date{start.AddDate(0, 0, i)}})
		}
		return out, nil
	}

	var (
		appts    []*Appointment
		versions []*ProviderSchedule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		appts, err = a.appointments.ListStartingIn(gctx, businessID, start, end.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("list appointments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		versions, err = a.resolver.SchedulesIntersecting(gctx, providerIDs, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]*dayTotals, days)
	for _, appt := range appts {
		if appt.IsDeleted {
			continue
		}
		key := DateOf(appt.StartTime)
		t := byDay[key]
		if t == nil {
			t = &dayTotals{}
			byDay[key] = t
		}
		t.count++
		t.occupied += appt.DurationMinutes()
	}

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		row := DaySummary{Date: Date{date}, TotalScheduledMinutes: ScheduledMinutesOn(versions, date)}
		if t := byDay[date]; t != nil {
			row.AppointmentsCount = t.count
			row.TotalOccupiedMinutes = t.occupied
		}
		row.TotalAvailableMinutes = max(0, row.TotalScheduledMinutes-row.TotalOccupiedMinutes)
		out = append(out, row)
	}
	return out, nil
}
