package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slotbook/scheduler/internal/platform/auth"
	"github.com/slotbook/scheduler/internal/platform/db"
	"github.com/slotbook/scheduler/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – owner, staff
	read := api.Group("", auth.RequireRole(auth.RoleOwner, auth.RoleStaff))
	read.GET("/appointments/conflicts", h.CheckConflict)
	read.GET("/appointments/:id", h.GetAppointment)
	read.GET("/calendar/summary", h.CalendarSummary)
	read.GET("/calendar/day", h.DayDetails)
	read.GET("/providers/:id/schedules", h.ListProviderSchedules)
	read.GET("/providers/:id/availability", h.ProviderAvailability)

	// Booking – owner, staff
	book := api.Group("", auth.RequireRole(auth.RoleOwner, auth.RoleStaff))
	book.POST("/appointments", h.BookAppointment)
	book.PUT("/appointments/:id", h.RescheduleAppointment)
	book.DELETE("/appointments/:id", h.CancelAppointment)

	// Schedule management – owner
	manage := api.Group("", auth.RequireRole(auth.RoleOwner))
	manage.PUT("/providers/:id/schedules", h.ReplaceProviderSchedules)
}

// httpError maps domain error kinds onto status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, ErrConflict.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

func businessID(c echo.Context) (int64, error) {
	id := db.BusinessFromContext(c.Request().Context())
	if id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "business id is required")
	}
	return id, nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryDate(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	d, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return d, nil
}

func queryClock(c echo.Context, name string) (*Clock, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	clock, err := ParseClock(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return &clock, nil
}

func queryTimestamp(c echo.Context, name string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.QueryParam(name))
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

// -- Appointment Handlers --

func (h *Handler) BookAppointment(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	var in AppointmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Book(c.Request().Context(), bid, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), bid, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in AppointmentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.Reschedule(c.Request().Context(), bid, id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Cancel(c.Request().Context(), bid, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CheckConflict answers GET /appointments/conflicts?providerId&start&end[&excludeId].
func (h *Handler) CheckConflict(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	providerID, err := strconv.ParseInt(c.QueryParam("providerId"), 10, 64)
	if err != nil || providerID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "providerId is required")
	}
	start, err := queryTimestamp(c, "start")
	if err != nil {
		return err
	}
	end, err := queryTimestamp(c, "end")
	if err != nil {
		return err
	}
	var exclude *int64
	if raw := c.QueryParam("excludeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid excludeId")
		}
		exclude = &id
	}

	conflict, err := h.svc.HasConflict(c.Request().Context(), bid, providerID, start, end, exclude)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"conflict": conflict})
}

// -- Calendar Handlers --

func (h *Handler) CalendarSummary(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	start, err := queryDate(c, "startDate")
	if err != nil {
		return err
	}
	end, err := queryDate(c, "endDate")
	if err != nil {
		return err
	}
	days, err := h.svc.Summary(c.Request().Context(), bid, start, end)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, days)
}

func (h *Handler) DayDetails(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	from, err := queryClock(c, "startTimeFrom")
	if err != nil {
		return err
	}
	to, err := queryClock(c, "startTimeTo")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	detail, err := h.svc.Details(c.Request().Context(), DayQuery{
		BusinessID:    bid,
		Date:          date,
		Page:          pg.Page,
		PageSize:      pg.PageSize,
		StartTimeFrom: from,
		StartTimeTo:   to,
		Search:        c.QueryParam("search"),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// -- Schedule Handlers --

func (h *Handler) ListProviderSchedules(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to := from
	if c.QueryParam("to") != "" {
		if to, err = queryDate(c, "to"); err != nil {
			return err
		}
	}
	versions, err := h.svc.ProviderSchedules(c.Request().Context(), bid, id, from, to)
	if err != nil {
		return httpError(err)
	}
	if versions == nil {
		versions = []*ProviderSchedule{}
	}
	return c.JSON(http.StatusOK, versions)
}

func (h *Handler) ProviderAvailability(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}
	minutes, err := h.svc.ProviderAvailability(c.Request().Context(), bid, id, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providerId":       id,
		"date":             Date{date},
		"dayOfWeek":        date.Weekday().String(),
		"scheduledMinutes": minutes,
	})
}

type replaceRequest struct {
	Schedules []ScheduleInput `json:"schedules"`
}

func (h *Handler) ReplaceProviderSchedules(c echo.Context) error {
	bid, err := businessID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req replaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.ReplaceSchedules(c.Request().Context(), bid, id, req.Schedules)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, created)
}
