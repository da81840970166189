package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/coursepilot/coursepilot/internal/rag"
	"github.com/coursepilot/coursepilot/internal/tools"
)

type fakeSystem struct {
	answer  string
	sources []tools.Source
	err     error

	lastQuery   string
	lastSession string
	deleted     string
}

func (f *fakeSystem) Query(_ context.Context, query, sessionID string) (string, []tools.Source, error) {
	f.lastQuery, f.lastSession = query, sessionID
	return f.answer, f.sources, f.err
}

func (f *fakeSystem) NewSession() string      { return "session-123" }
func (f *fakeSystem) DeleteSession(id string) { f.deleted = id }

func (f *fakeSystem) GetAnalytics(context.Context) (rag.Analytics, error) {
	return rag.Analytics{TotalCourses: 1, CourseTitles: []string{"Introduction to MCP"}}, f.err
}

func TestHandleQuery(t *testing.T) {
	sys := &fakeSystem{
		answer:  "Servers expose tools.",
		sources: []tools.Source{{Label: "Introduction to MCP - Lesson 1", Link: "https://example.com/1"}},
	}
	e := New(sys, "").Echo()

	body := `{"query": "What do MCP servers do?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Answer != "Servers expose tools." {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
	if resp.SessionID != "session-123" {
		t.Errorf("expected a new session id, got %q", resp.SessionID)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Link != "https://example.com/1" {
		t.Errorf("unexpected sources: %+v", resp.Sources)
	}
	if sys.lastSession != "session-123" {
		t.Errorf("query ran under session %q", sys.lastSession)
	}
}

func TestHandleQueryReusesSession(t *testing.T) {
	sys := &fakeSystem{answer: "ok"}
	e := New(sys, "").Echo()

	body := `{"query": "follow-up", "session_id": "existing"}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sys.lastSession != "existing" {
		t.Errorf("expected existing session to be reused, got %q", sys.lastSession)
	}
}

func TestHandleQueryValidation(t *testing.T) {
	e := New(&fakeSystem{}, "").Echo()

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": ""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty query, got %d", rec.Code)
	}
}

func TestHandleQueryModelError(t *testing.T) {
	sys := &fakeSystem{err: errors.New("rate limited")}
	e := New(sys, "").Echo()

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query": "hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for model failure, got %d", rec.Code)
	}
}

func TestHandleCourses(t *testing.T) {
	e := New(&fakeSystem{}, "").Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var analytics rag.Analytics
	if err := json.Unmarshal(rec.Body.Bytes(), &analytics); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if analytics.TotalCourses != 1 || analytics.CourseTitles[0] != "Introduction to MCP" {
		t.Errorf("unexpected analytics: %+v", analytics)
	}
}

func TestHandleDeleteSession(t *testing.T) {
	sys := &fakeSystem{}
	e := New(sys, "").Echo()

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if sys.deleted != "abc" {
		t.Errorf("expected session abc deleted, got %q", sys.deleted)
	}
}
