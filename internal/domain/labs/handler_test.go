package labs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/uropathway/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func TestHandler_RecordResult(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"value":3.2,"test_date":"2025-04-01"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.RecordResult(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_RecordResult_BadValue(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"value":"high","test_date":"2025-04-01"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.RecordResult(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetVelocity(t *testing.T) {
	h, e := newTestHandler()
	pid := uuid.New()
	h.svc.Record(context.Background(), pid, RecordRequest{Value: 2.0, TestDate: "2024-01-01"})
	h.svc.Record(context.Background(), pid, RecordRequest{Value: 2.5, TestDate: "2024-12-31"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(pid.String())

	if err := h.GetVelocity(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v Velocity
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !v.HasEnoughData || v.IsHighRisk {
		t.Errorf("expected low-risk velocity, got %+v", v)
	}
}

func TestHandler_ListResults(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.ListResults(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}

func TestHandler_RegisterRoutes_Roles(t *testing.T) {
	h, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))
	pid := uuid.New().String()

	tests := []struct {
		name   string
		role   string
		method string
		path   string
		body   string
		want   int
	}{
		{"registrar reads results", auth.RoleRegistrar, http.MethodGet, "/psa-results", "", http.StatusOK},
		{"registrar reads velocity", auth.RoleRegistrar, http.MethodGet, "/psa-velocity", "", http.StatusOK},
		{"registrar cannot record", auth.RoleRegistrar, http.MethodPost, "/psa-results", `{"value":3.2,"test_date":"2025-04-01"}`, http.StatusForbidden},
		{"nurse records", auth.RoleNurse, http.MethodPost, "/psa-results", `{"value":3.2,"test_date":"2025-04-01"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/patients/"+pid+tt.path, strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req = req.WithContext(auth.WithUser(req.Context(), auth.User{ID: "u1"}, []string{tt.role}))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}
