package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/afritokeni/platform/pkg/errs"
)

// writeError maps an *errs.Error's Kind to one HTTP status, centrally,
// so no handler hand-rolls a status code per error (spec.md §7/§9).
func writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	c.JSON(status, gin.H{"error": string(kind), "message": err.Error()})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.InvalidInput, errs.InvalidAddress, errs.InvalidCurrency, errs.AmountOutOfRange, errs.ArithmeticError:
		return http.StatusBadRequest
	case errs.Unauthorized, errs.InvalidPin:
		return http.StatusUnauthorized
	case errs.PinLocked, errs.KycRequired, errs.FraudBlocked:
		return http.StatusForbidden
	case errs.NotFound:
		return http.StatusNotFound
	case errs.AlreadyExists, errs.StateConflict, errs.Expired:
		return http.StatusConflict
	case errs.InsufficientFunds, errs.SlippageExceeded, errs.RateUnavailable:
		return http.StatusUnprocessableEntity
	case errs.RateLimited:
		return http.StatusTooManyRequests
	case errs.UpstreamLedgerFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
