// Command stationsim runs a simulated local monitoring station for manual
// testing against a running coordinator. It binds itself in the directory
// service, connects to the coordinator, and periodically raises and cancels
// alerts from its configured sensors while serving the ping and state
// endpoints the coordinator probes.
//
// Usage:
//
//	go run ./cmd/stationsim \
//	  -name north \
//	  -listen :8090 \
//	  -advertise http://localhost:8090 \
//	  -directory http://localhost:7000 \
//	  -coordinator http://localhost:8080
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zackehh/corba-flood-warning-system/internal/directory"
	"github.com/zackehh/corba-flood-warning-system/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	name := flag.String("name", "north", "station name")
	listen := flag.String("listen", ":8090", "listen address for ping/state endpoints")
	advertise := flag.String("advertise", "http://localhost:8090", "address bound in the directory")
	directoryURL := flag.String("directory", "http://localhost:7000", "directory service base URL")
	coordinatorURL := flag.String("coordinator", "http://localhost:8080", "coordinator base URL")
	interval := flag.Duration("interval", 5*time.Second, "delay between simulated sensor reports")
	flag.Parse()

	sim := &station{
		name:        *name,
		coordinator: *coordinatorURL,
		client:      &http.Client{Timeout: 5 * time.Second},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dir := directory.NewClient(*directoryURL, 5*time.Second, logger)
	if err := dir.Register(ctx, *name, *advertise); err != nil {
		return fmt.Errorf("bind in directory: %w", err)
	}
	if err := sim.connect(ctx); err != nil {
		return fmt.Errorf("connect to coordinator: %w", err)
	}
	log.Printf("station %q connected, reporting every %s", *name, *interval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", sim.handlePing)
	mux.HandleFunc("GET /state", sim.handleState)
	srv := &http.Server{Addr: *listen, Handler: mux, ReadTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	sim.reportLoop(ctx, *interval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sim.disconnect(shutdownCtx); err != nil {
		log.Printf("disconnect error: %v", err)
	}
	return srv.Shutdown(shutdownCtx)
}

// station holds the simulator's identity and its own live alert list, which
// it serves back to the coordinator's district-state probe.
type station struct {
	name        string
	coordinator string
	client      *http.Client

	mu     sync.Mutex
	alerts []domain.Alert
}

var zones = []string{"riverside", "lowfield", "millrace"}

// reportLoop alternates between raising and cancelling alerts until the
// context is cancelled.
func (s *station) reportLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		alert := domain.Alert{
			AlertKey: domain.AlertKey{
				StationID: s.name,
				Zone:      zones[rand.Intn(len(zones))],
				SensorID:  fmt.Sprintf("S%d", rand.Intn(4)),
			},
			Time:        domain.Now(),
			Measurement: 50 + rand.Intn(150),
		}

		// Occasionally cancel an existing alert instead of raising one.
		if existing, ok := s.randomAlert(); ok && rand.Intn(4) == 0 {
			if err := s.post(ctx, http.MethodDelete, "/v1/alerts", existing.AlertKey); err != nil {
				log.Printf("cancel failed: %v", err)
				continue
			}
			s.remove(existing.AlertKey)
			log.Printf("cancelled %s", existing.AlertKey.String())
			continue
		}

		if err := s.post(ctx, http.MethodPost, "/v1/alerts", alert); err != nil {
			log.Printf("raise failed: %v", err)
			continue
		}
		s.upsert(alert)
		log.Printf("raised %s measurement=%d", alert.AlertKey.String(), alert.Measurement)
	}
}

func (s *station) connect(ctx context.Context) error {
	return s.post(ctx, http.MethodPut, "/v1/stations/"+url.PathEscape(s.name), nil)
}

func (s *station) disconnect(ctx context.Context) error {
	return s.post(ctx, http.MethodDelete, "/v1/stations/"+url.PathEscape(s.name), nil)
}

func (s *station) post(ctx context.Context, method, path string, payload any) error {
	var reader *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.coordinator+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *station) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"ok":true}`)
}

func (s *station) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	alerts := make([]domain.Alert, len(s.alerts))
	copy(alerts, s.alerts)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]domain.Alert{"alerts": alerts}); err != nil {
		log.Printf("state encode error: %v", err)
	}
}

func (s *station) upsert(alert domain.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].AlertKey == alert.AlertKey {
			s.alerts[i] = alert
			return
		}
	}
	s.alerts = append(s.alerts, alert)
}

func (s *station) remove(key domain.AlertKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].AlertKey == key {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			return
		}
	}
}

func (s *station) randomAlert() (domain.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.alerts) == 0 {
		return domain.Alert{}, false
	}
	return s.alerts[rand.Intn(len(s.alerts))], true
}
