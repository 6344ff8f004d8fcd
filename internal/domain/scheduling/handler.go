package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/uropathway/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/patients/:id/appointments", h.ListAppointments)
	read.GET("/appointments/recurrence-preview", h.PreviewRecurrence)

	write := api.Group("", auth.RequireRole(auth.ReadRoles...))
	write.POST("/patients/:id/appointments", h.BookAppointment)
	write.POST("/appointments/:id/cancel", h.CancelAppointment)
}

type bookAppointmentRequest struct {
	Date             string          `json:"date"`
	Time             string          `json:"time"`
	ClinicianID      string          `json:"clinician_id"`
	ClinicianName    string          `json:"clinician_name"`
	Type             AppointmentType `json:"type"`
	Subtype          string          `json:"subtype"`
	Notes            string          `json:"notes"`
	Priority         string          `json:"priority"`
	// RecurrenceMonths also books the rest of a one-year follow-up series.
	RecurrenceMonths int             `json:"recurrence_months"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var body bookAppointmentRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	date, err := ParseDate(body.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.RecurrenceMonths != 0 && !ValidInterval(body.RecurrenceMonths) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidInterval.Error())
	}
	a, err := h.svc.Book(c.Request().Context(), patientID, BookingRequest{
		Date:          date,
		Time:          body.Time,
		ClinicianID:   body.ClinicianID,
		ClinicianName: body.ClinicianName,
		Type:          body.Type,
		Subtype:       body.Subtype,
		Notes:         body.Notes,
		Priority:      body.Priority,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.RecurrenceMonths == 0 {
		return c.JSON(http.StatusCreated, a)
	}

	series, err := h.svc.BookRecurring(c.Request().Context(), patientID, a.Date, a.Time, body.RecurrenceMonths, BookingRequest{
		ClinicianID:   body.ClinicianID,
		ClinicianName: body.ClinicianName,
		Subtype:       "recurring",
		Notes:         body.Notes,
	})
	resp := map[string]interface{}{
		"appointment": a,
		"recurring":   series,
	}
	if err != nil {
		resp["errors"] = err.Error()
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type previewOccurrence struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// PreviewRecurrence lists the follow-up dates a recurring series would add
// after the base appointment.
func (h *Handler) PreviewRecurrence(c echo.Context) error {
	base, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	baseTime := c.QueryParam("time")
	if !ValidTimeOfDay(baseTime) {
		return echo.NewHTTPError(http.StatusBadRequest, "time must be HH:MM")
	}
	interval, err := strconv.Atoi(c.QueryParam("interval"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "interval must be a number of months")
	}
	occs, err := h.svc.PreviewRecurrence(base, baseTime, interval)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out := make([]previewOccurrence, 0, len(occs))
	for _, o := range occs {
		out = append(out, previewOccurrence{Date: o.Date.Format(DateLayout), Time: o.Time})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"base":        previewOccurrence{Date: base.Format(DateLayout), Time: baseTime},
		"interval":    interval,
		"total":       OccurrenceCount(interval),
		"occurrences": out,
	})
}
