package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/fairweather/fairweather/internal/api/models"
	"github.com/fairweather/fairweather/internal/api/response"
	"github.com/fairweather/fairweather/internal/featureflags"
	"github.com/fairweather/fairweather/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck is a named dependency check run by the readiness endpoint.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds the dependencies of the ops endpoints. All fields except
// the build info are optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Flags     *featureflags.Service
	Checks    []ReadinessCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /api/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]string{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /api/ops/ready. Any failing check answers 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			health.Status = models.HealthStatusFail
			if health.Details == nil {
				health.Details = make(map[string]string)
			}
			health.Details[s.Name] = *s.Detail
		}
	}

	status := http.StatusOK
	if health.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /api/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusFail
		}
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			ps := providerStatus(ph)
			if ps.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

// ListFlags handles GET /api/ops/flags - effective feature flags.
func (h *OpsHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	list := models.FlagList{Items: []featureflags.Flag{}}
	if h.cfg.Flags != nil {
		list.Items = append(list.Items, h.cfg.Flags.GetAllFlags(r.Context())...)
	}
	response.JSON(w, r, http.StatusOK, list)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	out := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	for _, c := range h.cfg.Checks {
		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err := c.Check(ctx); err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: int(ph.Counts.ConsecutiveFailures),
		LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
		LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
	}

	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
