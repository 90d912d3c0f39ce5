package scheduling

import (
	"context"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func version(provider int64, day time.Weekday, start, end Clock, from time.Time, until *time.Time) *ProviderSchedule {
	return &ProviderSchedule{ProviderID: provider, DayOfWeek: day, StartTime: start, EndTime: end, ValidFrom: from, ValidUntil: until}
}

func TestProviderSchedule_ValidOn(t *testing.T) {
	until := date(2024, 6, 30)
	v := version(10, time.Monday, NewClock(9, 0), NewClock(17, 0), date(2024, 6, 10), &until)

	tests := []struct {
		day  time.Time
		want bool
	}{
		{date(2024, 6, 3), false},  // Monday before validFrom
		{date(2024, 6, 10), true},  // first day
		{date(2024, 6, 11), false}, // Tuesday
		{date(2024, 6, 24), true},
		{date(2024, 7, 1), false}, // after validUntil
		{time.Date(2024, 6, 17, 23, 59, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		if got := v.ValidOn(tt.day); got != tt.want {
			t.Errorf("ValidOn(%s) = %v, want %v", tt.day.Format(time.RFC3339), got, tt.want)
		}
	}

	lastDay := version(10, time.Sunday, NewClock(9, 0), NewClock(10, 0), date(2024, 6, 1), &until)
	if !lastDay.ValidOn(until) {
		t.Error("validUntil is inclusive")
	}
}

func TestResolver_ClosedVersionIgnored(t *testing.T) {
	closed := date(2024, 5, 31)
	repo := &mockScheduleRepo{versions: []*ProviderSchedule{
		version(10, time.Monday, NewClock(8, 0), NewClock(12, 0), date(2024, 1, 1), &closed),
		version(10, time.Monday, NewClock(9, 0), NewClock(17, 0), date(2024, 6, 1), nil),
	}}
	r := NewResolver(repo)

	got, err := r.MinutesByDayOfWeek(context.Background(), []int64{10}, date(2024, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[time.Monday] != 480 {
		t.Errorf("expected 480 minutes, got %d", got[time.Monday])
	}

	got, _ = r.MinutesByDayOfWeek(context.Background(), []int64{10}, date(2024, 5, 27))
	if got[time.Monday] != 240 {
		t.Errorf("expected only the closed version before June, got %d", got[time.Monday])
	}
}

func TestResolver_SumsSimultaneousVersions(t *testing.T) {
	repo := &mockScheduleRepo{versions: []*ProviderSchedule{
		version(10, time.Monday, NewClock(9, 0), NewClock(13, 0), date(2024, 1, 1), nil),
		version(10, time.Monday, NewClock(14, 0), NewClock(18, 0), date(2024, 1, 1), nil),
		version(11, time.Monday, NewClock(10, 0), NewClock(11, 0), date(2024, 1, 1), nil),
		version(11, time.Tuesday, NewClock(10, 0), NewClock(11, 0), date(2024, 1, 1), nil),
	}}
	r := NewResolver(repo)

	got, err := r.MinutesByDayOfWeek(context.Background(), []int64{10, 11}, date(2024, 6, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[time.Monday] != 540 {
		t.Errorf("expected 540 minutes, got %d", got[time.Monday])
	}
	if _, ok := got[time.Tuesday]; ok {
		t.Error("only the date's own weekday should be present")
	}
}

func TestResolver_NoProvidersSkipsQuery(t *testing.T) {
	repo := &mockScheduleRepo{}
	r := NewResolver(repo)

	versions, err := r.SchedulesIntersecting(context.Background(), nil, date(2024, 6, 1), date(2024, 6, 30))
	if err != nil || versions != nil {
		t.Errorf("expected nil result, got %v (%v)", versions, err)
	}
	if repo.queries != 0 {
		t.Errorf("expected no query, got %d", repo.queries)
	}
}

func TestScheduledMinutesOn(t *testing.T) {
	versions := []*ProviderSchedule{
		version(10, time.Friday, NewClock(9, 0), NewClock(18, 0), date(2024, 1, 1), nil),
	}
	if got := ScheduledMinutesOn(versions, date(2024, 6, 14)); got != 540 {
		t.Errorf("expected 540 on Friday, got %d", got)
	}
	if got := ScheduledMinutesOn(versions, date(2024, 6, 15)); got != 0 {
		t.Errorf("expected 0 on Saturday, got %d", got)
	}
}
