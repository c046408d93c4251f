package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type DBPinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db         DBPinger
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

func NewHealthChecker(db DBPinger, webhookURL string, log *slog.Logger) *HealthChecker {
	clientTO := 5
	return &HealthChecker{
		db:         db,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: time.Duration(clientTO) * time.Second},
		log:        log,
	}
}

// ServeHTTP reports database and webhook reachability. A webhook answering HEAD with a 4xx is
// still considered up, since webhook endpoints usually accept POST only.
func (h *HealthChecker) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	h.log.DebugContext(req.Context(), "Performing health checks...")

	var err error
	status := make(map[string]string)
	overallStatus := http.StatusOK

	if err = h.db.Ping(req.Context()); err != nil {
		status["database"] = "unavailable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(req.Context(), "Health check failed: DB ping", "error", err)
	} else {
		status["database"] = "ok"
	}

	headReq, err := http.NewRequestWithContext(req.Context(), http.MethodHead, h.webhookURL, nil)
	var resp *http.Response
	if err == nil {
		resp, err = h.httpClient.Do(headReq)
	}

	switch {
	case err != nil:
		status["webhook"] = "unreachable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(
			req.Context(),
			"Health check failed: webhook unreachable",
			"url",
			h.webhookURL,
			"error",
			err,
		)
	case resp.StatusCode >= http.StatusInternalServerError:
		status["webhook"] = "degraded"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(
			req.Context(),
			"Health check failed: webhook returned error status",
			"url",
			h.webhookURL,
			"status_code",
			resp.StatusCode,
		)
	default:
		status["webhook"] = "ok"
	}
	if resp != nil {
		if err = resp.Body.Close(); err != nil {
			h.log.WarnContext(req.Context(), "Failed to close response body", "error", err)
		}
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(overallStatus)
	if err = json.NewEncoder(writer).Encode(status); err != nil {
		h.log.ErrorContext(req.Context(), "Failed to write health check response", "error", err)
	}

	h.log.DebugContext(req.Context(), "Health checks completed", "status", overallStatus)
}
