package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	leddomain "github.com/crashchain/crashchain/internal/ledger/domain"
	obddomain "github.com/crashchain/crashchain/internal/obdrecord/domain"
	pindomain "github.com/crashchain/crashchain/internal/pinning/domain"
	subdomain "github.com/crashchain/crashchain/internal/submission/domain"
)

type errorPayload struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Errors  []subdomain.FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var vErr *subdomain.ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, obddomain.ErrMalformedExport):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, pindomain.ErrUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "storage_unavailable",
			Message: "content storage unavailable",
		}
	case errors.Is(err, leddomain.ErrUnreachable),
		errors.Is(err, leddomain.ErrContractNotDeployed):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "ledger_unavailable",
			Message: "ledger unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
