package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"shopsuite/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordDomainError(t *testing.T, err error) (*httptest.ResponseRecorder, *ErrorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, SendDomainError(c, err))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, &resp
}

// Services wrap limit errors with call-site context; the numbers must
// survive the wrapping.
func TestSendDomainError_WrappedLimitErrorKeepsDetails(t *testing.T) {
	limitErr := &models.LimitError{Resource: models.ResourceShops, Current: 5, Limit: 5}
	rec, resp := recordDomainError(t, fmt.Errorf("creating shop: %w", limitErr))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, models.ReasonLimitExceeded, resp.Error.Code)
	assert.Equal(t, "shops", resp.Error.Details["resource"])
	assert.Equal(t, "5", resp.Error.Details["current"])
	assert.Equal(t, "5", resp.Error.Details["limit"])
}

func TestSendDomainError_PaymentRequiredCarriesCheckoutURL(t *testing.T) {
	gate := &models.PaymentRequiredError{PlanCode: "growth", CheckoutURL: "https://checkout.example/cs_42"}
	rec, resp := recordDomainError(t, gate)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, models.ReasonPaymentRequired, resp.Error.Code)
	assert.Equal(t, "https://checkout.example/cs_42", resp.Error.Details["checkout_url"])
}

func TestSendDomainError_UnknownErrorHidesInternals(t *testing.T) {
	rec, resp := recordDomainError(t, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "SERVER_ERROR", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
