package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParsePurpose(t *testing.T) {
	tests := []struct {
		in   string
		want PurposeOfUse
	}{
		{"treatment", PurposeTreatment},
		{"TREATMENT", PurposeTreatment},
		{" Payment ", PurposePayment},
		{"operations", PurposeOperations},
		{"healthcare_operations", PurposeOperations},
		{"marketing", PurposeNone},
		{"", PurposeNone},
	}

	for _, tt := range tests {
		if got := ParsePurpose(tt.in); got != tt.want {
			t.Errorf("ParsePurpose(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPurposeOfUse_String(t *testing.T) {
	if PurposeTreatment.String() != "treatment" || PurposeNone.String() != "none" {
		t.Errorf("unexpected strings: %s %s", PurposeTreatment, PurposeNone)
	}
}

func TestAccessReason_AnnotatesContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AccessReasonHeader, "treatment")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if got := PurposeFromContext(c.Request().Context()); got != PurposeTreatment {
			t.Errorf("purpose = %v, want treatment", got)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := AccessReason()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccessReason_MissingHeaderIsNone(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if got := PurposeFromContext(c.Request().Context()); got != PurposeNone {
			t.Errorf("purpose = %v, want none", got)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := AccessReason()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPurposeFromContext_DefaultsToNone(t *testing.T) {
	if got := PurposeFromContext(context.Background()); got != PurposeNone {
		t.Errorf("purpose = %v, want none", got)
	}
}
