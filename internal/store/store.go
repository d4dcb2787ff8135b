// Package store is the durable mirror of station registrations and alerts,
// backed by PostgreSQL. It exists so the set of known stations survives
// coordinator restarts and so alert state can be recovered at boot.
//
// Every operation is independently transactional against the database but is
// NOT transactionally linked to the in-memory registry: the coordinator
// mutates the registry first and mirrors here second, accepting that the
// mirror lags when a write fails. Failures never propagate as errors to the
// stations; mutations degrade to a boolean and are logged and counted here.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zackehh/corba-flood-warning-system/internal/domain"
	"github.com/zackehh/corba-flood-warning-system/internal/observability"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS stations (
    id           TEXT PRIMARY KEY,
    center_name  TEXT NOT NULL,
    station_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id          BIGSERIAL PRIMARY KEY,
    station_id  TEXT        NOT NULL,
    time        BIGINT      NOT NULL,
    zone        VARCHAR(26) NOT NULL,
    sensor_id   VARCHAR(4)  NOT NULL,
    measurement INTEGER     NOT NULL
);

CREATE INDEX IF NOT EXISTS alerts_key_idx ON alerts (station_id, zone, sensor_id);
`

// PersistentStore wraps a pgx pool behind the coordinator's persistence
// contract. A single instance is constructed at process start and shared by
// every worker; a mutex serializes all operations so the store behaves as
// one exclusion domain, matching the single-handle model the original
// deployment relied on.
type PersistentStore struct {
	mu      sync.Mutex
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Open connects to the database, ensures the schema exists, and returns the
// store. Schema failure at startup is fatal to the caller: the coordinator
// must not run without its mirror.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger, metrics *observability.Metrics) (*PersistentStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PersistentStore{pool: pool, logger: logger, metrics: metrics}, nil
}

// Close releases the pool resources.
func (s *PersistentStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *PersistentStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// stationID composes the primary key for a registration. The pair is unique
// per (centre, station) by construction.
func stationID(reg domain.StationRegistration) string {
	return reg.CenterName + "/" + reg.StationName
}

// InsertStation records a station connection. A duplicate registration is a
// constraint violation, reported as failure; the store does not enforce
// idempotence on the caller's behalf.
func (s *PersistentStore) InsertStation(ctx context.Context, reg domain.StationRegistration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO stations (id, center_name, station_name) VALUES ($1, $2, $3)`,
		stationID(reg), reg.CenterName, reg.StationName,
	)
	if err != nil {
		s.fail("insert_station", err, "center", reg.CenterName, "station", reg.StationName)
		return false
	}
	return true
}

// DeleteStation removes a station registration.
func (s *PersistentStore) DeleteStation(ctx context.Context, reg domain.StationRegistration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.pool.Exec(ctx,
		`DELETE FROM stations WHERE center_name = $1 AND station_name = $2`,
		reg.CenterName, reg.StationName,
	)
	if err != nil {
		s.fail("delete_station", err, "center", reg.CenterName, "station", reg.StationName)
		return false
	}
	return true
}

// InsertAlert records a newly raised alert.
func (s *PersistentStore) InsertAlert(ctx context.Context, alert domain.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (station_id, time, zone, sensor_id, measurement) VALUES ($1, $2, $3, $4, $5)`,
		alert.StationID, alert.Time, alert.Zone, alert.SensorID, alert.Measurement,
	)
	if err != nil {
		s.fail("insert_alert", err, "key", alert.AlertKey.String())
		return false
	}
	return true
}

// UpdateAlert atomically replaces measurement and time for the row matching
// the alert's compound key. Returns false when the statement fails or no row
// matched; a zero-row update means the mirror is missing the alert and the
// caller should surface the divergence.
func (s *PersistentStore) UpdateAlert(ctx context.Context, alert domain.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET measurement = $1, time = $2 WHERE station_id = $3 AND zone = $4 AND sensor_id = $5`,
		alert.Measurement, alert.Time, alert.StationID, alert.Zone, alert.SensorID,
	)
	if err != nil {
		s.fail("update_alert", err, "key", alert.AlertKey.String())
		return false
	}
	return tag.RowsAffected() > 0
}

// DeleteAlert removes all rows matching the compound key. There should be at
// most one, but the contract permits clearing duplicates.
func (s *PersistentStore) DeleteAlert(ctx context.Context, key domain.AlertKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE station_id = $1 AND zone = $2 AND sensor_id = $3`,
		key.StationID, key.Zone, key.SensorID,
	)
	if err != nil {
		s.fail("delete_alert", err, "key", key.String())
		return false
	}
	return true
}

// ListAlertsOrderedByTime returns all mirrored alerts ascending by report
// time, oldest first.
func (s *PersistentStore) ListAlertsOrderedByTime(ctx context.Context) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx,
		`SELECT station_id, time, zone, sensor_id, measurement FROM alerts ORDER BY time ASC`,
	)
	if err != nil {
		s.fail("list_alerts", err)
		return nil, err
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0)
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.StationID, &a.Time, &a.Zone, &a.SensorID, &a.Measurement); err != nil {
			s.fail("list_alerts", err)
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		s.fail("list_alerts", err)
		return nil, err
	}
	return alerts, nil
}

// ListDistinctStationNames returns the names of every station ever
// registered, distinct on the station name.
func (s *PersistentStore) ListDistinctStationNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT station_name FROM stations ORDER BY station_name`)
	if err != nil {
		s.fail("list_stations", err)
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			s.fail("list_stations", err)
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		s.fail("list_stations", err)
		return nil, err
	}
	return names, nil
}

// fail logs a store-level failure and bumps its counter. Faults stop here;
// callers only ever see the degraded return value.
func (s *PersistentStore) fail(op string, err error, args ...any) {
	s.logger.Error("store operation failed", append([]any{"op", op, "error", err}, args...)...)
	s.metrics.StoreFailures.WithLabelValues(op).Inc()
}
