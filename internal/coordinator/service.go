// Package coordinator ties the alert registry, the durable mirror, and the
// station directory together behind the regional monitoring centre's call
// surface. One Service instance is constructed at process start and shared
// by every inbound worker.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/zackehh/corba-flood-warning-system/internal/directory"
	"github.com/zackehh/corba-flood-warning-system/internal/domain"
	"github.com/zackehh/corba-flood-warning-system/internal/observability"
	"github.com/zackehh/corba-flood-warning-system/internal/registry"
)

// Store is the durable mirror consumed by the service. Mutations degrade to
// a boolean; queries surface their failure as an error. Neither ever panics.
type Store interface {
	Ping(ctx context.Context) error
	InsertStation(ctx context.Context, reg domain.StationRegistration) bool
	DeleteStation(ctx context.Context, reg domain.StationRegistration) bool
	InsertAlert(ctx context.Context, alert domain.Alert) bool
	UpdateAlert(ctx context.Context, alert domain.Alert) bool
	DeleteAlert(ctx context.Context, key domain.AlertKey) bool
	ListAlertsOrderedByTime(ctx context.Context) ([]domain.Alert, error)
	ListDistinctStationNames(ctx context.Context) ([]string, error)
}

// Directory resolves station names and queries the resolved stations.
type Directory interface {
	Resolve(ctx context.Context, name string) (directory.Handle, bool)
	Ping(ctx context.Context, h directory.Handle) bool
	CurrentState(ctx context.Context, h directory.Handle) ([]domain.Alert, bool)
}

// Display receives fire-and-forget notifications for the operator-facing
// client. Implementations absorb their own failures.
type Display interface {
	AddAlert(ctx context.Context, alert domain.Alert)
	CancelAlert(ctx context.Context, key domain.AlertKey)
}

// NopDisplay discards notifications. Used when no display collaborator is
// configured, and in tests.
type NopDisplay struct{}

func (NopDisplay) AddAlert(context.Context, domain.Alert)       {}
func (NopDisplay) CancelAlert(context.Context, domain.AlertKey) {}

// Service implements the coordinator's call surface.
type Service struct {
	name            string
	registry        *registry.AlertRegistry
	store           Store
	directory       Directory
	display         Display
	logger          *slog.Logger
	metrics         *observability.Metrics
	districtTimeout time.Duration
}

// New wires the coordinator service. The registry and store must be the
// process-wide singletons; they are shared by every worker, never
// duplicated per call.
func New(name string, reg *registry.AlertRegistry, st Store, dir Directory, disp Display,
	logger *slog.Logger, metrics *observability.Metrics, districtTimeout time.Duration) *Service {
	return &Service{
		name:            name,
		registry:        reg,
		store:           st,
		directory:       dir,
		display:         disp,
		logger:          logger,
		metrics:         metrics,
		districtTimeout: districtTimeout,
	}
}

// TestConnection is a pure liveness acknowledgement; it always succeeds.
func (s *Service) TestConnection(name string) bool {
	s.logger.Info("connection test", "from", name)
	return true
}

// Name returns this coordinator's registered identity.
func (s *Service) Name() string {
	return s.name
}

// CheckReadiness reports whether the durable mirror is reachable. The
// coordinator keeps serving live-alert calls without it, but cannot answer
// durable queries, so readiness tracks store health.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// RegisterStationConnection records the station durably. The returned value
// is always true: the coordinator's availability to a connecting station
// must not depend on store health, so a failed write is logged and counted
// rather than bounced back.
func (s *Service) RegisterStationConnection(ctx context.Context, station string) bool {
	s.logger.Info("station connected", "station", station)
	s.metrics.StationConnects.Inc()

	reg := domain.StationRegistration{CenterName: s.name, StationName: station}
	if !s.store.InsertStation(ctx, reg) {
		s.logger.Warn("station registration not mirrored durably", "station", station)
	}
	return true
}

// RemoveStationConnection mirrors RegisterStationConnection for disconnects.
func (s *Service) RemoveStationConnection(ctx context.Context, station string) bool {
	s.logger.Info("station disconnected", "station", station)
	s.metrics.StationDisconnects.Inc()

	reg := domain.StationRegistration{CenterName: s.name, StationName: station}
	if !s.store.DeleteStation(ctx, reg) {
		s.logger.Warn("station removal not mirrored durably", "station", station)
	}
	return true
}

// ReceiveAlert upserts the alert into the registry, mirrors it durably, and
// notifies the display. A repeated report for the same (station, zone,
// sensor) key replaces the previous payload; later calls win. The call
// always completes for the station even when the mirror write fails.
func (s *Service) ReceiveAlert(ctx context.Context, alert domain.Alert) {
	wasNew := s.registry.Upsert(alert)

	s.metrics.AlertsReceived.Inc()
	s.metrics.ActiveAlerts.Set(float64(s.registry.Len()))

	// The registry's verdict drives insert-vs-update so the two stores
	// stay aligned under normal operation.
	var mirrored bool
	if wasNew {
		mirrored = s.store.InsertAlert(ctx, alert)
	} else {
		mirrored = s.store.UpdateAlert(ctx, alert)
	}
	if !mirrored {
		s.diverged("receive", alert.AlertKey)
	}

	s.display.AddAlert(ctx, alert)
	s.logger.Info("received alert",
		"station", alert.StationID, "zone", alert.Zone, "sensor", alert.SensorID,
		"measurement", alert.Measurement, "new", wasNew)
}

// CancelAlert removes the alert matching the full compound key. A partial
// match (zone alone) is never enough: two stations reporting the same zone
// must not cross-cancel each other's alerts. Unknown keys are logged and
// otherwise ignored.
func (s *Service) CancelAlert(ctx context.Context, key domain.AlertKey) {
	if !s.registry.Remove(key) {
		s.logger.Warn("cancel for unknown alert", "station", key.StationID, "zone", key.Zone, "sensor", key.SensorID)
		return
	}

	s.metrics.AlertsCancelled.Inc()
	s.metrics.ActiveAlerts.Set(float64(s.registry.Len()))

	if !s.store.DeleteAlert(ctx, key) {
		s.diverged("cancel", key)
	}

	s.display.CancelAlert(ctx, key)
	s.logger.Info("removed alert", "station", key.StationID, "zone", key.Zone, "sensor", key.SensorID)
}

// GetAlerts returns the registry's current snapshot, oldest alert first.
func (s *Service) GetAlerts() []domain.Alert {
	return s.registry.List()
}

// GetDistrictState resolves the named station, probes it, and pulls its own
// live alert list. Returns false on any downstream fault. The whole round
// trip is bounded by the configured district timeout so one unreachable
// station cannot stall a worker indefinitely.
func (s *Service) GetDistrictState(ctx context.Context, station string) ([]domain.Alert, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.districtTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		s.metrics.DistrictProbeDuration.Observe(time.Since(start).Seconds())
	}()

	h, ok := s.directory.Resolve(ctx, station)
	if !ok {
		s.metrics.DistrictProbes.WithLabelValues("unknown").Inc()
		return nil, false
	}
	if !s.directory.Ping(ctx, h) {
		s.metrics.DistrictProbes.WithLabelValues("unreachable").Inc()
		return nil, false
	}
	alerts, ok := s.directory.CurrentState(ctx, h)
	if !ok {
		s.metrics.DistrictProbes.WithLabelValues("failed").Inc()
		return nil, false
	}
	s.metrics.DistrictProbes.WithLabelValues("ok").Inc()
	return alerts, true
}

// GetKnownStations lists every station name the coordinator has ever seen.
// The durable mirror is the source of truth here so the answer spans
// restarts, not just the current session. Degrades to an empty list when
// the store is unavailable.
func (s *Service) GetKnownStations(ctx context.Context) []string {
	names, err := s.store.ListDistinctStationNames(ctx)
	if err != nil {
		s.logger.Warn("known-station query degraded to empty", "error", err)
		return []string{}
	}
	return names
}

// RecoverAlerts seeds the registry from the durable mirror. Called once at
// startup, before any calls are served.
func (s *Service) RecoverAlerts(ctx context.Context) error {
	alerts, err := s.store.ListAlertsOrderedByTime(ctx)
	if err != nil {
		return err
	}
	for _, alert := range alerts {
		s.registry.Upsert(alert)
	}
	s.metrics.ActiveAlerts.Set(float64(s.registry.Len()))
	s.logger.Info("recovered alerts from durable mirror", "count", s.registry.Len())
	return nil
}

func (s *Service) diverged(op string, key domain.AlertKey) {
	s.metrics.StoreDivergence.Inc()
	s.logger.Warn("registry mutated but mirror write failed; mirror lags until next successful write",
		"op", op, "station", key.StationID, "zone", key.Zone, "sensor", key.SensorID)
}
