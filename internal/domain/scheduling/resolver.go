package scheduling

import (
	"context"
	"fmt"
	"time"
)

// Resolver answers which schedule versions apply on a date. Simultaneously
// valid versions for the same weekday are summed.
type Resolver struct {
	schedules ScheduleRepository
}

func NewResolver(schedules ScheduleRepository) *Resolver {
	return &Resolver{schedules: schedules}
}

// SchedulesIntersecting fetches, in one query, every version whose validity
// window touches [startDate, endDate].
func (r *Resolver) SchedulesIntersecting(ctx context.Context, providerIDs []int64, startDate, endDate time.Time) ([]*ProviderSchedule, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}
	versions, err := r.schedules.ListIntersecting(ctx, providerIDs, DateOf(startDate), DateOf(endDate))
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return versions, nil
}

// MinutesByDayOfWeek totals the minutes of every version valid on date, keyed
// by weekday. Only the date's own weekday can be present.
func (r *Resolver) MinutesByDayOfWeek(ctx context.Context, providerIDs []int64, date time.Time) (map[time.Weekday]int, error) {
	versions, err := r.SchedulesIntersecting(ctx, providerIDs, date, date)
	if err != nil {
		return nil, err
	}
	return minutesByDay(versions, date), nil
}

func minutesByDay(versions []*ProviderSchedule, date time.Time) map[time.Weekday]int {
	out := make(map[time.Weekday]int)
	for _, v := range versions {
		if v.ValidOn(date) {
			out[v.DayOfWeek] += v.Minutes()
		}
	}
	return out
}

// ScheduledMinutesOn sums the versions in an already-fetched set that apply on
// date.
func ScheduledMinutesOn(versions []*ProviderSchedule, date time.Time) int {
	return minutesByDay(versions, date)[DateOf(date).Weekday()]
}
