package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/httputil"
	"github.com/scoutlane/scoutlane/internal/metrics"
	"github.com/scoutlane/scoutlane/internal/models"
)

// mapError translates domain errors into HTTP responses.
//
// ErrTenantNotFound and ErrNotMember intentionally collapse into one
// response so an unknown slug and a foreign tenant are indistinguishable
// to the caller. Anything outside the taxonomy is an internal error: it is
// logged with the request ID and surfaces as a generic message.
func mapError(c *gin.Context, log *logrus.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		httputil.RespondError(c, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, models.ErrTenantNotFound), errors.Is(err, models.ErrNotMember):
		httputil.RespondError(c, http.StatusNotFound, "not_found", "tenant not found")
	case errors.Is(err, models.ErrTenantSelection):
		httputil.RespondError(c, http.StatusBadRequest, "validation_error", "multiple memberships, specify a tenant")
	case errors.Is(err, models.ErrForbidden):
		httputil.RespondError(c, http.StatusForbidden, "forbidden", "insufficient permissions")
	case errors.Is(err, models.ErrRateLimited):
		httputil.RespondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later")
	case errors.Is(err, models.ErrValidation):
		httputil.RespondError(c, http.StatusBadRequest, "validation_error", "invalid request")
	default:
		metrics.ErrorsTotal.WithLabelValues("internal").Inc()
		log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("internal error")
		httputil.RespondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
