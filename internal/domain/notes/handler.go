package notes

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/uropathway/internal/platform/auth"
	"github.com/ehr/uropathway/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/patients/:id/notes", h.ListNotes)
	read.GET("/patients/:id/timeline", h.GetTimeline)

	write := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	write.POST("/patients/:id/notes", h.AddNote)
}

type addNoteRequest struct {
	Type    NoteType `json:"type"`
	Content string   `json:"content"`
}

// AddNote stores free text; structured bodies are recognised by Decode.
func (h *Handler) AddNote(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var body addNoteRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Type == "" {
		body.Type = TypeClinical
	}
	ctx := c.Request().Context()
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	n, err := h.svc.AddNote(ctx, patientID, NewNote{
		Type:    body.Type,
		Content: Decode(body.Content),
		Author:  Author{Name: user.DisplayName, Role: auth.PrimaryRole(ctx)},
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, err := h.svc.ListNotes(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Paginate(items, pg))
}

func (h *Handler) GetTimeline(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	entries, err := h.svc.Timeline(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}
