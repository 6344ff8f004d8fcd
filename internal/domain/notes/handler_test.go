package notes

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

func withUser(req *http.Request) *http.Request {
	ctx := auth.WithUser(req.Context(), auth.User{ID: "u1", DisplayName: "Sister Jones"}, []string{"nurse"})
	return req.WithContext(ctx)
}

func TestHandler_AddNote(t *testing.T) {
	h, e := newTestHandler()
	body := `{"type":"clinical","content":"Transfer To: Surgery Pathway\nReason for Transfer: MDT outcome"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.AddNote(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["author_name"] != "Sister Jones" || resp["author_role"] != "nurse" {
		t.Errorf("unexpected author in %v", resp)
	}
	if resp["content_kind"] != string(KindPathwayTransfer) {
		t.Errorf("expected structured content, got %v", resp["content_kind"])
	}
}

func TestHandler_AddNote_NoUser(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.AddNote(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_ListNotes_Paginated(t *testing.T) {
	h, e := newTestHandler()
	pid := uuid.New()
	for i := 0; i < 3; i++ {
		h.svc.AddNote(context.Background(), pid, NewNote{Type: TypeClinical, Content: PlainText{Text: "note"}, Author: testAuthor})
	}

	req := httptest.NewRequest(http.MethodGet, "/?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(pid.String())

	if err := h.ListNotes(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data    []map[string]interface{} `json:"data"`
		Total   int                      `json:"total"`
		HasMore bool                     `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Data) != 2 || resp.Total != 3 || !resp.HasMore {
		t.Errorf("unexpected page: %d items, total %d, has_more %v", len(resp.Data), resp.Total, resp.HasMore)
	}
}

func TestHandler_GetTimeline(t *testing.T) {
	h, e := newTestHandler()
	pid := uuid.New()
	h.svc.AddNote(context.Background(), pid, NewNote{Type: TypePathwayTransfer, Content: PathwayTransferPayload{To: SurgicalPathway}, Author: testAuthor})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(pid.String())

	if err := h.GetTimeline(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var entries []struct {
		IndentLevel int `json:"indent_level"`
	}
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}

func TestHandler_InvalidPatientID(t *testing.T) {
	h, e := newTestHandler()
	for _, fn := range []echo.HandlerFunc{h.ListNotes, h.GetTimeline, h.AddNote} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("nope")
		if err := fn(c); err == nil {
			t.Error("expected error for invalid id")
		}
	}
}
