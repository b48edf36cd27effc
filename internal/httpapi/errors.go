package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"callcenter/internal/calls"
	"callcenter/internal/customers"
	"callcenter/internal/enrichment"
	"callcenter/internal/ingest"
	"callcenter/internal/insights"
	"callcenter/internal/reporting"
	"callcenter/internal/voiceagent"
	"callcenter/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without detail.
func writeError(c *gin.Context, err error) {
	var apiErr *voiceagent.APIError
	var rl *enrichment.RateLimitError
	switch {
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": rl.Error()})
	case errors.Is(err, ingest.ErrInvalidInput),
		errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, customers.ErrInvalidArgument),
		errors.Is(err, voiceagent.ErrInvalidArgument),
		errors.Is(err, insights.ErrEmptyCatalog),
		errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, customers.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ingest.ErrBatchInProgress),
		errors.Is(err, ingest.ErrCallAlreadyProcessed),
		errors.Is(err, enrichment.ErrClassificationInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ingest.ErrNoTranscript),
		errors.Is(err, ingest.ErrNoPhoneNumber),
		errors.Is(err, insights.ErrNoTranscript):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		if apiErr.NotFound() {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		logger.FromGin(c).Warn("voice platform error", slog.Int("status", apiErr.StatusCode), slog.Any("err", err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "voice platform error"})
	default:
		logger.FromGin(c).Error("request failed", slog.Any("err", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
