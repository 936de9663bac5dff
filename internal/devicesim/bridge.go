package devicesim

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxLineBytes = 64 * 1024

// BridgeStats counts what a bridge run did with its input lines.
type BridgeStats struct {
	Forwarded int
	Skipped   int
	Failed    int
}

// Bridge relays newline-delimited JSON readings from a serial stream to the backend.
// Blank lines and lines that are not JSON objects, such as firmware debug output, are
// skipped.
type Bridge struct {
	endpoint string
	client   *http.Client
}

// NewBridge creates a bridge posting to baseURL.
func NewBridge(baseURL string) *Bridge {
	return &Bridge{
		endpoint: baseURL + "/api/readings",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Relay reads r until EOF or ctx is cancelled.
func (b *Bridge) Relay(ctx context.Context, r io.Reader) (BridgeStats, error) {
	var stats BridgeStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' || !json.Valid(line) {
			if len(line) > 0 {
				slog.Debug("serial line skipped", "line", string(line))
			}
			stats.Skipped++
			continue
		}
		if err := PostJSON(ctx, b.client, b.endpoint, line); err != nil {
			slog.Warn("failed to forward serial reading", "err", err)
			stats.Failed++
			continue
		}
		stats.Forwarded++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read serial stream: %w", err)
	}
	return stats, nil
}
