package pathway

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/uropathway/internal/domain/labs"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/platform/auth"
)

// VelocitySource computes a patient's PSA velocity from stored results.
type VelocitySource interface {
	Velocity(ctx context.Context, patientID uuid.UUID) (labs.Velocity, error)
}

type Handler struct {
	svc *Service
	psa VelocitySource
}

func NewHandler(svc *Service, psa VelocitySource) *Handler {
	return &Handler{svc: svc, psa: psa}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/patients/:id/pipeline", h.GetPipeline)

	write := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	write.POST("/patients/:id/pathway-transitions", h.CreateTransition)
}

func (h *Handler) CreateTransition(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if h.psa != nil {
		v, err := h.psa.Velocity(ctx, patientID)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("patient_id", patientID.String()).Msg("psa velocity unavailable")
		} else {
			req.PSAVelocity = &v
		}
	}

	res, err := h.svc.Transition(ctx, patientID, req)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		var perr *Error
		if errors.As(err, &perr) {
			return echo.NewHTTPError(perr.Kind.HTTPStatus(), perr.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if res.RequiresDischargeSummary {
		return c.JSON(http.StatusAccepted, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetPipeline(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	stage, err := h.svc.Pipeline(c.Request().Context(), patientID)
	if errors.Is(err, patient.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"stage":      stage,
	})
}
