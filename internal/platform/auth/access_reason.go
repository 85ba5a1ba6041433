package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
)

// AccessReasonHeader carries the caller's declared purpose for touching
// PHI on this request.
const AccessReasonHeader = "X-PHI-Access-Reason"

// PurposeOfUse is a request's declared reason for accessing PHI. It lives
// for one request: the middleware reads it, the audit trail records it,
// nothing persists it beyond that.
type PurposeOfUse int

const (
	PurposeNone PurposeOfUse = iota
	PurposeTreatment
	PurposePayment
	PurposeOperations
)

func (p PurposeOfUse) String() string {
	switch p {
	case PurposeTreatment:
		return "treatment"
	case PurposePayment:
		return "payment"
	case PurposeOperations:
		return "operations"
	default:
		return "none"
	}
}

// ParsePurpose maps a header value to a PurposeOfUse. Unknown or empty
// values parse to PurposeNone; the middleware decides whether that is a
// violation.
func ParsePurpose(s string) PurposeOfUse {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "treatment":
		return PurposeTreatment
	case "payment":
		return PurposePayment
	case "operations", "healthcare_operations":
		return PurposeOperations
	default:
		return PurposeNone
	}
}

const purposeKey contextKey = "phi_purpose"

// AccessReason annotates the request context with the declared purpose of
// use. It never rejects by itself; enforcement belongs to the PHI
// middleware so exempt paths stay exempt.
func AccessReason() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			purpose := ParsePurpose(c.Request().Header.Get(AccessReasonHeader))
			ctx := context.WithValue(c.Request().Context(), purposeKey, purpose)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// PurposeFromContext returns the declared purpose, defaulting to
// PurposeNone.
func PurposeFromContext(ctx context.Context) PurposeOfUse {
	if p, ok := ctx.Value(purposeKey).(PurposeOfUse); ok {
		return p
	}
	return PurposeNone
}
