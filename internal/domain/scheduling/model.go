package scheduling

import (
	"encoding/json"
	"time"
)

// Appointment maps to the appointments table. Cancelled rows stay with
// IsDeleted set.
type Appointment struct {
	ID         int64     `db:"id" json:"id"`
	BusinessID int64     `db:"business_id" json:"businessId"`
	ProviderID int64     `db:"provider_id" json:"providerId"`
	CustomerID *int64    `db:"customer_id" json:"customerId,omitempty"`
	ServiceID  *int64    `db:"service_id" json:"serviceId,omitempty"`
	StartTime  time.Time `db:"start_time" json:"startTime"`
	EndTime    time.Time `db:"end_time" json:"endTime"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	IsDeleted  bool      `db:"is_deleted" json:"isDeleted"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

func (a *Appointment) DurationMinutes() int {
	return int(a.EndTime.Sub(a.StartTime) / time.Minute)
}

// ProviderSchedule is one version of a provider's availability for a single
// weekday. ValidUntil nil means open-ended.
type ProviderSchedule struct {
	ID         int64        `db:"id" json:"id"`
	ProviderID int64        `db:"provider_id" json:"providerId"`
	DayOfWeek  time.Weekday `db:"day_of_week" json:"dayOfWeek"`
	StartTime  Clock        `db:"start_time" json:"startTime"`
	EndTime    Clock        `db:"end_time" json:"endTime"`
	ValidFrom  time.Time    `db:"valid_from" json:"validFrom"`
	ValidUntil *time.Time   `db:"valid_until" json:"validUntil,omitempty"`
}

// MarshalJSON writes the validity bounds as plain dates.
func (s ProviderSchedule) MarshalJSON() ([]byte, error) {
	type alias ProviderSchedule
	out := struct {
		alias
		ValidFrom  Date  `json:"validFrom"`
		ValidUntil *Date `json:"validUntil,omitempty"`
	}{alias: alias(s), ValidFrom: Date{s.ValidFrom}}
	if s.ValidUntil != nil {
		out.ValidUntil = &Date{*s.ValidUntil}
	}
	return json.Marshal(out)
}

// ValidOn reports whether the version applies to the given calendar date:
// same weekday, validFrom <= date, and validUntil absent or >= date.
func (s *ProviderSchedule) ValidOn(date time.Time) bool {
	d := DateOf(date)
	if s.DayOfWeek != d.Weekday() {
		return false
	}
	if DateOf(s.ValidFrom).After(d) {
		return false
	}
	return s.ValidUntil == nil || !DateOf(*s.ValidUntil).Before(d)
}

// Minutes is the length of the availability window.
func (s *ProviderSchedule) Minutes() int {
	return s.EndTime.Sub(s.StartTime)
}

// ScheduleInput is one weekday window in a bulk replacement.
type ScheduleInput struct {
	DayOfWeek time.Weekday `json:"dayOfWeek"`
	StartTime Clock        `json:"startTime"`
	EndTime   Clock        `json:"endTime"`
}

// AppointmentInput carries the caller-controlled fields of a booking or a
// reschedule.
type AppointmentInput struct {
	ProviderID int64     `json:"providerId"`
	CustomerID *int64    `json:"customerId,omitempty"`
	ServiceID  *int64    `json:"serviceId,omitempty"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Notes      string    `json:"notes,omitempty"`
}

// DayAppointment is an appointment joined with the display names the day
// view needs.
type DayAppointment struct {
	Appointment
	ProviderName string
	CustomerName *string
	ServiceName  *string
}

type DaySummary struct {
	Date                  Date `json:"date"`
	AppointmentsCount     int  `json:"appointmentsCount"`
	TotalScheduledMinutes int  `json:"totalScheduledMinutes"`
	TotalOccupiedMinutes  int  `json:"totalOccupiedMinutes"`
	TotalAvailableMinutes int  `json:"totalAvailableMinutes"`
}

type AppointmentRow struct {
	ID              int64  `json:"id"`
	CustomerName    string `json:"customerName"`
	ProviderName    string `json:"providerName"`
	ServiceName     string `json:"serviceName"`
	StartTime       Clock  `json:"startTime"`
	EndTime         Clock  `json:"endTime"`
	DurationMinutes int    `json:"durationMinutes"`
}

type DayDetail struct {
	Date                  Date             `json:"date"`
	DayOfWeek             string           `json:"dayOfWeek"`
	TotalAppointments     int              `json:"totalAppointments"`
	AppointmentsTrend     int              `json:"appointmentsTrend"`
	TotalScheduledMinutes int              `json:"totalScheduledMinutes"`
	TotalOccupiedMinutes  int              `json:"totalOccupiedMinutes"`
	Appointments          []AppointmentRow `json:"appointments"`
	CurrentPage           int              `json:"currentPage"`
	PageSize              int              `json:"pageSize"`
	TotalPages            int              `json:"totalPages"`
	TotalCount            int              `json:"totalCount"`
}

// DayQuery holds the inputs of the day view. Zero Page and PageSize are
// clamped to their defaults.
type DayQuery struct {
	BusinessID    int64
	Date          time.Time
	Page          int
	PageSize      int
	StartTimeFrom *Clock
	StartTimeTo   *Clock
	Search        string
}

// NoCustomerName labels appointments booked without a customer.
const NoCustomerName = "No customer assigned"
