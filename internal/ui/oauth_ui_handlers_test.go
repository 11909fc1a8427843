package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRenderSuccess(t *testing.T) {
	pages, err := NewPages()
	if err != nil {
		t.Fatalf("new pages: %v", err)
	}

	rec := httptest.NewRecorder()
	pages.RenderSuccess(rec)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Calendar Connected Successfully!") {
		t.Fatalf("body missing heading: %s", body)
	}
	if !strings.Contains(body, "3000") {
		t.Fatalf("body missing close timer: %s", body)
	}
}

func TestRenderErrorEscapes(t *testing.T) {
	pages, err := NewPages()
	if err != nil {
		t.Fatalf("new pages: %v", err)
	}

	rec := httptest.NewRecorder()
	pages.RenderError(rec, http.StatusBadRequest, "Authorization Failed", "<script>alert(1)</script>")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<script>alert(1)</script>") {
		t.Fatal("message was not escaped")
	}
}
