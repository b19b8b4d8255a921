package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopsuite/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	TenantIDKey contextKey = "tenant_id"
	RoleKey     contextKey = "role"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// SendDomainError translates a domain error into the response envelope. The
// reason code decides the HTTP status; limit errors carry their numbers and
// payment gates their checkout URL in the details map so clients can render
// exact messaging.
func SendDomainError(c echo.Context, err error) error {
	reason := models.ReasonForError(err)

	var status int
	switch reason {
	case models.ReasonNotFound:
		status = http.StatusNotFound
	case models.ReasonUnauthorized:
		status = http.StatusUnauthorized
	case models.ReasonForbidden, models.ReasonSelfRoleChange, models.ReasonSoleOwnerProtection, models.ReasonInsufficientPrivilege:
		status = http.StatusForbidden
	case models.ReasonLimitExceeded:
		status = http.StatusConflict
	case models.ReasonPaymentRequired:
		status = http.StatusPaymentRequired
	case models.ReasonInvalidState:
		status = http.StatusConflict
	default:
		return SendServerError(c, "Internal server error")
	}

	var details map[string]string
	var limitErr *models.LimitError
	var paymentErr *models.PaymentRequiredError
	switch {
	case errors.As(err, &limitErr):
		details = map[string]string{
			"resource": string(limitErr.Resource),
			"current":  fmt.Sprintf("%d", limitErr.Current),
			"limit":    fmt.Sprintf("%d", limitErr.Limit),
		}
	case errors.As(err, &paymentErr):
		details = map[string]string{
			"checkout_url": paymentErr.CheckoutURL,
		}
	}

	return c.JSON(status, CreateErrorResponse(reason, err.Error(), details))
}

// ValidateUUID validates UUID format
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid UUID: %v", fieldName, err)
	}

	return id, nil
}

// ValidatePositiveInteger validates positive integer values with upper bounds
func ValidatePositiveInteger(value int, fieldName string, maxValue int) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	if value > maxValue {
		return fmt.Errorf("%s cannot exceed %d", fieldName, maxValue)
	}
	return nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateSubdomain checks tenant subdomain format: lowercase alphanumerics
// and hyphens, no leading or trailing hyphen.
func ValidateSubdomain(subdomain string) error {
	if len(subdomain) < 3 || len(subdomain) > 63 {
		return fmt.Errorf("subdomain must be between 3 and 63 characters")
	}
	for i, ch := range subdomain {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		case ch == '-':
			if i == 0 || i == len(subdomain)-1 {
				return fmt.Errorf("subdomain cannot start or end with a hyphen")
			}
		default:
			return fmt.Errorf("subdomain may only contain lowercase letters, digits and hyphens")
		}
	}
	return nil
}

// SafeString safely handles string pointer operations
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetTenantIDFromContext extracts the tenant ID from the request context
func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	return tenantID, ok
}

// GetRoleFromContext extracts the caller's role from the request context
func GetRoleFromContext(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(RoleKey).(models.Role)
	return role, ok
}
