package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Default working week given to newly onboarded providers.
var (
	DefaultWorkdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	DefaultDayStart = NewClock(9, 0)
	DefaultDayEnd   = NewClock(18, 0)
)

type Provisioner struct {
	schedules ScheduleRepository
	now       func() time.Time
}

func NewProvisioner(schedules ScheduleRepository, now func() time.Time) *Provisioner {
	if now == nil {
		now = time.Now
	}
	return &Provisioner{schedules: schedules, now: now}
}

// Seed writes the default Monday to Friday 09:00-18:00 week, valid from today
// with no end. It joins the caller's transaction when there is one.
func (p *Provisioner) Seed(ctx context.Context, providerID int64) error {
	today := DateOf(p.now())
	versions := make([]*ProviderSchedule, 0, len(DefaultWorkdays))
	for _, day := range DefaultWorkdays {
		versions = append(versions, &ProviderSchedule{
			ProviderID: providerID,
			DayOfWeek:  day,
			StartTime:  DefaultDayStart,
			EndTime:    DefaultDayEnd,
			ValidFrom:  today,
		})
	}
	if err := p.schedules.CreateMany(ctx, versions); err != nil {
		return fmt.Errorf("seed default schedule: %w", err)
	}
	return nil
}

type Replacer struct {
	providers ProviderDirectory
	schedules ScheduleRepository
	tx        Transactor
	now       func() time.Time
}

func NewReplacer(providers ProviderDirectory, schedules ScheduleRepository, tx Transactor, now func() time.Time) *Replacer {
	if now == nil {
		now = time.Now
	}
	return &Replacer{providers: providers, schedules: schedules, tx: tx, now: now}
}

// Replace swaps the provider's weekly availability for versions, effective
// today. Versions already in effect are closed at yesterday so history stays
// intact; versions that had not yet taken effect are dropped.
func (r *Replacer) Replace(ctx context.Context, businessID, providerID int64, versions []ScheduleInput) ([]*ProviderSchedule, error) {
	ok, err := r.providers.ProviderBelongs(ctx, businessID, providerID)
	if err != nil {
		return nil, fmt.Errorf("check provider: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("provider %d: %w", providerID, ErrNotFound)
	}
	if err := ValidateScheduleInputs(versions); err != nil {
		return nil, err
	}

	today := DateOf(r.now())
	created := make([]*ProviderSchedule, 0, len(versions))
	for _, v := range versions {
		created = append(created, &ProviderSchedule{
			ProviderID: providerID,
			DayOfWeek:  v.DayOfWeek,
			StartTime:  v.StartTime,
			EndTime:    v.EndTime,
			ValidFrom:  today,
		})
	}

	err = r.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := r.tx.LockProvider(ctx, providerID); err != nil {
			return err
		}
		if _, err := r.schedules.DeleteNotYetEffective(ctx, providerID, today); err != nil {
			return fmt.Errorf("drop pending versions: %w", err)
		}
		if _, err := r.schedules.CloseCurrent(ctx, providerID, today); err != nil {
			return fmt.Errorf("close current versions: %w", err)
		}
		if err := r.schedules.CreateMany(ctx, created); err != nil {
			return fmt.Errorf("insert versions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ValidateScheduleInputs rejects out-of-range weekdays, empty or inverted
// windows, and windows that overlap another on the same weekday.
func ValidateScheduleInputs(versions []ScheduleInput) error {
	byDay := make(map[time.Weekday][]ScheduleInput)
	for i, v := range versions {
		if v.DayOfWeek < time.Sunday || v.DayOfWeek > time.Saturday {
			return fmt.Errorf("%w: entry %d: dayOfWeek must be between 0 and 6", ErrInvalidInput, i)
		}
		if !v.StartTime.Valid() || !v.EndTime.Valid() {
			return fmt.Errorf("%w: entry %d: time of day out of range", ErrInvalidInput, i)
		}
		if v.EndTime <= v.StartTime {
			return fmt.Errorf("%w: entry %d: endTime must be after startTime", ErrInvalidInput, i)
		}
		byDay[v.DayOfWeek] = append(byDay[v.DayOfWeek], v)
	}
	for day, windows := range byDay {
		sort.Slice(windows, func(i, j int) bool { return windows[i].StartTime < windows[j].StartTime })
		for i := 1; i < len(windows); i++ {
			if windows[i].StartTime < windows[i-1].EndTime {
				return fmt.Errorf("%w: overlapping windows on %s", ErrInvalidInput, day)
			}
		}
	}
	return nil
}
