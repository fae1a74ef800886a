package monitoring

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckFunc probes one dependency and reports an error when it is unhealthy.
type CheckFunc func(ctx context.Context) error

type checkResult struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// HealthStatus is the aggregate report returned by the health endpoint.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
}

// HealthChecker runs registered dependency probes and caches the latest result.
type HealthChecker struct {
	logger  *zap.SugaredLogger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
	last   HealthStatus
}

func NewHealthChecker(timeout time.Duration, logger *zap.SugaredLogger) *HealthChecker {
	return &HealthChecker{
		logger:  logger,
		timeout: timeout,
		checks:  make(map[string]CheckFunc),
	}
}

func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// CheckAll runs every registered probe and returns the aggregate status.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]checkResult, len(checks)),
	}

	for name, fn := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
		start := time.Now()
		err := fn(probeCtx)
		cancel()

		result := checkResult{Status: "healthy", Latency: time.Since(start).String()}
		if err != nil {
			result.Status = "unhealthy"
			result.Error = err.Error()
			status.Status = "unhealthy"
			h.logger.Warnw("health check failed", "check", name, "error", err)
		}
		status.Checks[name] = result
	}

	h.mu.Lock()
	h.last = status
	h.mu.Unlock()

	return status
}

// StartBackgroundChecks refreshes the cached status until ctx is cancelled.
func (h *HealthChecker) StartBackgroundChecks(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.CheckAll(ctx)
			}
		}
	}()
}

// Handler serves the aggregate health report.
func (h *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := h.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}
