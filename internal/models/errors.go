package models

import (
	"errors"
	"fmt"
)

// Reason codes carried to API clients for precise caller-side messaging.
const (
	ReasonNotFound              = "NOT_FOUND"
	ReasonUnauthorized          = "UNAUTHORIZED"
	ReasonForbidden             = "FORBIDDEN"
	ReasonSelfRoleChange        = "SELF_ROLE_CHANGE"
	ReasonSoleOwnerProtection   = "SOLE_OWNER_PROTECTION"
	ReasonInsufficientPrivilege = "INSUFFICIENT_PRIVILEGE"
	ReasonLimitExceeded         = "LIMIT_EXCEEDED"
	ReasonPaymentRequired       = "PAYMENT_REQUIRED"
	ReasonInvalidState          = "INVALID_STATE"
	ReasonTechnicalFailure      = "TECHNICAL_FAILURE"
)

// Sentinel errors for expected domain failures. Services return these (or
// wrap them with %w); handlers translate them to HTTP statuses. Anything not
// in this taxonomy is a technical failure.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrShopNotFound         = errors.New("shop not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	ErrSelfRoleChange        = errors.New("users cannot change their own role")
	ErrSelfDeactivation      = errors.New("users cannot deactivate themselves")
	ErrSelfDeletion          = errors.New("users cannot delete themselves")
	ErrSoleOwnerProtection   = errors.New("tenant must retain at least one active owner")
	ErrInsufficientPrivilege = errors.New("insufficient privilege for this operation")
	ErrOwnerNotDeletable     = errors.New("owners cannot be deleted, demote first")

	ErrPaymentRequired      = errors.New("plan change requires payment confirmation")
	ErrNoActiveSubscription = errors.New("tenant has no active subscription")
	ErrPendingPaymentExists = errors.New("a plan change is already awaiting payment")
	ErrPlanInactive         = errors.New("plan is not available for selection")
	ErrNotADowngrade        = errors.New("scheduled transitions must target a cheaper plan")
	ErrCheckoutExpired      = errors.New("checkout session expired before payment confirmation")
	ErrSubscriptionModified = errors.New("subscription was modified concurrently, retry")

	ErrUnknownResourceKind = errors.New("unknown resource kind")
	ErrInvalidRole         = errors.New("unknown role")
	ErrFeatureNotInPlan    = errors.New("current plan does not include this feature")
	ErrAccountLocked       = errors.New("account temporarily locked after repeated failures")

	ErrEmailTaken     = errors.New("email is already registered")
	ErrSlugTaken      = errors.New("shop slug is already in use")
	ErrSubdomainTaken = errors.New("subdomain is already in use")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is suspended or deactivated")
)

// LimitError reports a denied capacity request together with the numbers the
// caller needs to render a useful message.
type LimitError struct {
	Resource ResourceKind
	Current  int
	Limit    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit reached: %d of %d in use", e.Resource, e.Current, e.Limit)
}

// PaymentRequiredError gates a plan change behind checkout: the pending
// subscription stays parked until the session at CheckoutURL completes.
type PaymentRequiredError struct {
	PlanCode    string
	CheckoutURL string
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("plan %s requires payment confirmation", e.PlanCode)
}

func (e *PaymentRequiredError) Unwrap() error { return ErrPaymentRequired }

// ReasonForError maps a domain error to its machine-readable reason code.
// Unknown errors are technical failures.
func ReasonForError(err error) string {
	var limitErr *LimitError
	if errors.As(err, &limitErr) {
		return ReasonLimitExceeded
	}
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrShopNotFound),
		errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrSubscriptionNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonUnauthorized
	case errors.Is(err, ErrSelfRoleChange):
		return ReasonSelfRoleChange
	case errors.Is(err, ErrSoleOwnerProtection):
		return ReasonSoleOwnerProtection
	case errors.Is(err, ErrInsufficientPrivilege):
		return ReasonInsufficientPrivilege
	case errors.Is(err, ErrSelfDeactivation),
		errors.Is(err, ErrSelfDeletion),
		errors.Is(err, ErrOwnerNotDeletable),
		errors.Is(err, ErrFeatureNotInPlan),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrAccountLocked):
		return ReasonForbidden
	case errors.Is(err, ErrPaymentRequired):
		return ReasonPaymentRequired
	case errors.Is(err, ErrNoActiveSubscription),
		errors.Is(err, ErrPendingPaymentExists),
		errors.Is(err, ErrPlanInactive),
		errors.Is(err, ErrNotADowngrade),
		errors.Is(err, ErrCheckoutExpired),
		errors.Is(err, ErrSubscriptionModified),
		errors.Is(err, ErrUnknownResourceKind),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrSlugTaken),
		errors.Is(err, ErrSubdomainTaken):
		return ReasonInvalidState
	}
	return ReasonTechnicalFailure
}
