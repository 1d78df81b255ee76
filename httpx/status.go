package httpx

import "net/http"

// Statuses returned by livpred handlers and fakes.
const (
	StatusOK                 = http.StatusOK
	StatusNoContent          = http.StatusNoContent
	StatusBadRequest         = http.StatusBadRequest
	StatusNotFound           = http.StatusNotFound
	StatusConflict           = http.StatusConflict          // favorite of a started match
	StatusTooManyRequests    = http.StatusTooManyRequests   // upstream quota, retried by Client
	StatusInternalError      = http.StatusInternalServerError
	StatusBadGateway         = http.StatusBadGateway         // upstream failed or sent garbage
	StatusServiceUnavailable = http.StatusServiceUnavailable // degraded dependency
	StatusGatewayTimeout     = http.StatusGatewayTimeout
)
