package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/slotbook/scheduler/pkg/pagination"
)

type DayDetailService struct {
	providers    ProviderDirectory
	appointments AppointmentRepository
	resolver     *Resolver
}

func NewDayDetailService(providers ProviderDirectory, appts AppointmentRepository, resolver *Resolver) *DayDetailService {
	return &DayDetailService{providers: providers, appointments: appts, resolver: resolver}
}

// Details builds the day view. Totals, trend and occupied minutes describe the
// whole day; time and search filters only narrow the paginated rows.
func (s *DayDetailService) Details(ctx context.Context, q DayQuery) (*DayDetail, error) {
	date := DateOf(q.Date)
	page := pagination.Params{Page: q.Page, PageSize: q.PageSize}.Normalize()

	ctx, span := tracer.Start(ctx, "scheduling.Details")
	defer span.End()
	span.SetAttributes(attribute.Int64("business.id", q.BusinessID), attribute.String("date", date.Format(dateLayout)))

	detail := &DayDetail{
		Date:         Date{date},
		DayOfWeek:    date.Weekday().String(),
		Appointments: []AppointmentRow{},
		CurrentPage:  page.Page,
		PageSize:     page.PageSize,
	}

	providerIDs, err := s.providers.ActiveProviderIDs(ctx, q.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	day, err := s.appointments.ListDay(ctx, q.BusinessID, date)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}
	yesterday, err := s.appointments.CountDay(ctx, q.BusinessID, date.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("count previous day: %w", err)
	}
	minutes, err := s.resolver.MinutesByDayOfWeek(ctx, providerIDs, date)
	if err != nil {
		return nil, err
	}

	detail.TotalAppointments = len(day)
	detail.AppointmentsTrend = len(day) - yesterday
	detail.TotalScheduledMinutes = minutes[date.Weekday()]
	for _, a := range day {
		detail.TotalOccupiedMinutes += a.DurationMinutes()
	}

	filtered := filterDay(day, q.StartTimeFrom, q.StartTimeTo, q.Search)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartTime.After(filtered[j].StartTime)
	})

	detail.TotalCount = len(filtered)
	detail.TotalPages = page.TotalPages(len(filtered))
	lo, hi := page.Window(len(filtered))
	for _, a := range filtered[lo:hi] {
		detail.Appointments = append(detail.Appointments, toRow(a))
	}
	return detail, nil
}

// filterDay applies, in order, start >= from, start <= to (time of day) and a
// case-insensitive match on the displayed customer, provider or service name.
func filterDay(day []*DayAppointment, from, to *Clock, search string) []*DayAppointment {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]*DayAppointment, 0, len(day))
	for _, a := range day {
		start := ClockOf(a.StartTime)
		if from != nil && start < *from {
			continue
		}
		if to != nil && start > *to {
			continue
		}
		if needle != "" && !matchesSearch(a, needle) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func matchesSearch(a *DayAppointment, needle string) bool {
	return strings.Contains(strings.ToLower(customerName(a)), needle) ||
		strings.Contains(strings.ToLower(a.ProviderName), needle) ||
		strings.Contains(strings.ToLower(deref(a.ServiceName)), needle)
}

func customerName(a *DayAppointment) string {
	if a.CustomerName == nil || *a.CustomerName == "" {
		return NoCustomerName
	}
	return *a.CustomerName
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toRow(a *DayAppointment) AppointmentRow {
	return AppointmentRow{
		ID:              a.ID,
		CustomerName:    customerName(a),
		ProviderName:    a.ProviderName,
		ServiceName:     deref(a.ServiceName),
		StartTime:       ClockOf(a.StartTime),
		EndTime:         ClockOf(a.EndTime),
		DurationMinutes: a.DurationMinutes(),
	}
}
