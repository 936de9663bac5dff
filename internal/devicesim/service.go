package devicesim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Config controls a simulation run.
type Config struct {
	BaseURL        string
	Rooms          []string
	Interval       time.Duration
	IncidentChance float64
	Seed           uint64
	HTTPProxy      string
}

// Service drives one simulated device per room: every interval each device reports a
// reading and then polls for a pending command.
type Service struct {
	cfg     Config
	client  *http.Client
	devices []*Device
	now     func() time.Time
}

// NewService creates the simulator and its devices.
func NewService(cfg Config) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			slog.Warn("invalid proxy URL, connecting directly", "proxy", cfg.HTTPProxy, "err", err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	devices := make([]*Device, len(cfg.Rooms))
	for i, room := range cfg.Rooms {
		devices[i] = NewDevice(room, cfg.Seed+uint64(i), cfg.IncidentChance)
	}

	return &Service{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		devices: devices,
		now:     time.Now,
	}
}

// Run ticks every device until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	slog.Info("device simulator started", "rooms", len(s.devices), "interval", s.cfg.Interval, "backend", s.cfg.BaseURL)

	s.TickOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("device simulator shutting down")
			return
		case <-timer.C:
			s.TickOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// TickOnce reports one reading per device and applies any command waiting for it.
// Failures are logged per device so one unreachable call does not stall the others.
func (s *Service) TickOnce(ctx context.Context) {
	for _, d := range s.devices {
		r := d.Next(s.now())
		if err := s.postReading(ctx, r); err != nil {
			slog.Warn("failed to report reading", "room", d.RoomID, "err", err)
			continue
		}

		cmd, ok, err := s.fetchCommand(ctx, d.RoomID)
		if err != nil {
			slog.Warn("failed to poll commands", "room", d.RoomID, "err", err)
			continue
		}
		if ok {
			d.Apply(cmd)
		}
	}
}

func (s *Service) postReading(ctx context.Context, r Reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	return PostJSON(ctx, s.client, s.cfg.BaseURL+"/api/readings", body)
}

// PostJSON sends body to the readings endpoint and requires a 200 reply.
func PostJSON(ctx context.Context, client *http.Client, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}
	return nil
}

type commandResponse struct {
	Command *string `json:"command"`
}

func (s *Service) fetchCommand(ctx context.Context, roomID string) (string, bool, error) {
	endpoint := s.cfg.BaseURL + "/api/commands?id=" + url.QueryEscape(roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	var cr commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", false, fmt.Errorf("failed to decode command response: %w", err)
	}
	if cr.Command == nil {
		return "", false, nil
	}
	return *cr.Command, true, nil
}
