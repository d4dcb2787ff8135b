package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/zackehh/corba-flood-warning-system/internal/adapter/http"
	"github.com/zackehh/corba-flood-warning-system/internal/domain"
)

// stubCoordinator records calls and returns canned answers.
type stubCoordinator struct {
	readyErr error

	received    []domain.Alert
	cancelled   []domain.AlertKey
	connects    []string
	disconnects []string

	alerts        []domain.Alert
	stations      []string
	districtState []domain.Alert
	districtOK    bool
}

func (s *stubCoordinator) TestConnection(string) bool                { return true }
func (s *stubCoordinator) Name() string                              { return "Regional Monitoring Centre" }
func (s *stubCoordinator) CheckReadiness(context.Context) error      { return s.readyErr }
func (s *stubCoordinator) GetAlerts() []domain.Alert                 { return s.alerts }
func (s *stubCoordinator) GetKnownStations(context.Context) []string { return s.stations }

func (s *stubCoordinator) RegisterStationConnection(_ context.Context, station string) bool {
	s.connects = append(s.connects, station)
	return true
}

func (s *stubCoordinator) RemoveStationConnection(_ context.Context, station string) bool {
	s.disconnects = append(s.disconnects, station)
	return true
}

func (s *stubCoordinator) ReceiveAlert(_ context.Context, alert domain.Alert) {
	s.received = append(s.received, alert)
}

func (s *stubCoordinator) CancelAlert(_ context.Context, key domain.AlertKey) {
	s.cancelled = append(s.cancelled, key)
}

func (s *stubCoordinator) GetDistrictState(context.Context, string) ([]domain.Alert, bool) {
	return s.districtState, s.districtOK
}

func newTestServer(c *stubCoordinator) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", c, logger)
}

func do(srv *httpadapter.Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	rec := do(newTestServer(&stubCoordinator{}), http.MethodGet, "/v1/ping?name=north", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["ok"])
}

func TestNameEndpoint(t *testing.T) {
	rec := do(newTestServer(&stubCoordinator{}), http.MethodGet, "/v1/name", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Regional Monitoring Centre", body["name"])
}

func TestStationConnectDisconnect(t *testing.T) {
	stub := &stubCoordinator{}
	srv := newTestServer(stub)

	rec := do(srv, http.MethodPut, "/v1/stations/north", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"north"}, stub.connects)

	rec = do(srv, http.MethodDelete, "/v1/stations/north", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"north"}, stub.disconnects)
}

func TestKnownStations(t *testing.T) {
	stub := &stubCoordinator{stations: []string{"east", "north"}}
	rec := do(newTestServer(stub), http.MethodGet, "/v1/stations", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"east", "north"}, body["stations"])
}

func TestReceiveAlert(t *testing.T) {
	stub := &stubCoordinator{}
	alert := domain.Alert{
		AlertKey:    domain.AlertKey{StationID: "north", Zone: "Z1", SensorID: "S1"},
		Time:        100,
		Measurement: 5,
	}

	rec := do(newTestServer(stub), http.MethodPost, "/v1/alerts", alert)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, stub.received, 1)
	assert.Equal(t, alert, stub.received[0])
}

func TestReceiveAlert_MalformedBody(t *testing.T) {
	stub := &stubCoordinator{}
	srv := newTestServer(stub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/alerts", bytes.NewReader([]byte("not json")))
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.received)
}

func TestReceiveAlert_IncompleteKey(t *testing.T) {
	stub := &stubCoordinator{}
	alert := domain.Alert{AlertKey: domain.AlertKey{Zone: "Z1", SensorID: "S1"}, Time: 100}

	rec := do(newTestServer(stub), http.MethodPost, "/v1/alerts", alert)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.received)
}

func TestCancelAlert(t *testing.T) {
	stub := &stubCoordinator{}
	key := domain.AlertKey{StationID: "north", Zone: "Z1", SensorID: "S1"}

	rec := do(newTestServer(stub), http.MethodDelete, "/v1/alerts", key)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, stub.cancelled, 1)
	assert.Equal(t, key, stub.cancelled[0])
}

func TestCancelAlert_IncompleteKey(t *testing.T) {
	stub := &stubCoordinator{}

	rec := do(newTestServer(stub), http.MethodDelete, "/v1/alerts", domain.AlertKey{Zone: "Z1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.cancelled)
}

func TestGetAlerts(t *testing.T) {
	stub := &stubCoordinator{alerts: []domain.Alert{
		{AlertKey: domain.AlertKey{StationID: "north", Zone: "Z1", SensorID: "S1"}, Time: 100, Measurement: 5},
	}}

	rec := do(newTestServer(stub), http.MethodGet, "/v1/alerts", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]domain.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["alerts"], 1)
	assert.Equal(t, "north", body["alerts"][0].StationID)
}

func TestDistrictState_Found(t *testing.T) {
	stub := &stubCoordinator{
		districtState: []domain.Alert{
			{AlertKey: domain.AlertKey{StationID: "north", Zone: "Z1", SensorID: "S1"}, Time: 100, Measurement: 5},
		},
		districtOK: true,
	}

	rec := do(newTestServer(stub), http.MethodGet, "/v1/districts/north", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]domain.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["alerts"], 1)
}

func TestDistrictState_Unavailable(t *testing.T) {
	rec := do(newTestServer(&stubCoordinator{}), http.MethodGet, "/v1/districts/ghost", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := do(newTestServer(&stubCoordinator{}), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	rec := do(newTestServer(&stubCoordinator{}), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(newTestServer(&stubCoordinator{readyErr: errors.New("store down")}), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "store down", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(&stubCoordinator{}), http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
