package influxdb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/config"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "lpwan-dev-token",
		Org:           "lpwan",
		Bucket:        "uplinks",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test unless RUN_INTEGRATION is set and a
// server answers.
func skipIfNoInfluxDB(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("RUN_INTEGRATION not set, skipping InfluxDB integration test")
	}
	client, err := Connect(context.Background(), testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Second)
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Connect(ctx, cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name                 string
		batchSize, flush     int
		wantBatch, wantFlush uint
	}{
		{"configured", 500, 2, 500, 2000},
		{"defaults for zero", 0, 0, 100, 10000},
		{"defaults for negative", -5, -1, 100, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize, cfg.FlushInterval = tt.batchSize, tt.flush
			opts := clientOptions(cfg)
			if opts.BatchSize() != tt.wantBatch || opts.FlushInterval() != tt.wantFlush {
				t.Errorf("batch=%d flush=%d, want %d/%d", opts.BatchSize(), opts.FlushInterval(), tt.wantBatch, tt.wantFlush)
			}
		})
	}
}

func TestUplinkPoint(t *testing.T) {
	ts := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	line := lineProtocol(uplinkPoint(Uplink{
		ApplicationID: "app-1",
		DeviceID:      "dev-1",
		DevEUI:        "0011",
		NetworkType:   "IP",
		Payload:       json.RawMessage(`{"temp":21.5,"open":true,"label":"door","nested":{"x":1}}`),
		ReceivedAt:    ts,
	}))

	for _, want := range []string{
		"device_uplink,",
		"application_id=app-1",
		"dev_eui=0011",
		"network_type=IP",
		"temp=21.5",
		"open=true",
		"payload_bytes=",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	for _, unwanted := range []string{"label=", "nested="} {
		if strings.Contains(line, unwanted) {
			t.Errorf("line %q should not contain %q", line, unwanted)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(line), " 1790856000") {
		t.Errorf("line %q does not carry the receive time", line)
	}
}

func TestUplinkPoint_NonObjectPayload(t *testing.T) {
	line := lineProtocol(uplinkPoint(Uplink{DeviceID: "d", DevEUI: "e", Payload: json.RawMessage(`[1,2]`)}))
	if !strings.Contains(line, "payload_bytes=5i") {
		t.Errorf("line %q, want payload_bytes=5i only", line)
	}
}

func TestDownlinkPoint(t *testing.T) {
	line := lineProtocol(downlinkPoint("net-1", "dev-1", "ip", false, time.Unix(100, 0)))
	for _, want := range []string{"device_downlink,", "handler=ip", "network_id=net-1", "delivered=false", " 100"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWrites_DroppedWhenDisconnected(t *testing.T) {
	c := &Client{}
	var reported []error
	c.SetOnError(func(err error) { reported = append(reported, err) })

	c.WriteUplink(Uplink{DeviceID: "d"})
	c.WriteDownlink("n", "d", "ip", true)
	c.WritePoint("custom", nil, map[string]any{"v": 1})
	c.Flush()

	if len(reported) != 3 {
		t.Fatalf("reported %d errors, want 3", len(reported))
	}
	for i, err := range reported {
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("reported[%d] = %v, want ErrNotConnected", i, err)
		}
	}
	if !strings.Contains(reported[1].Error(), MeasurementDownlink) {
		t.Errorf("reported[1] = %v, want the measurement name", reported[1])
	}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHandleWriteErrors_WrapsWriteFailed(t *testing.T) {
	c := &Client{}
	var reported []error
	c.SetOnError(func(err error) { reported = append(reported, err) })

	cause := errors.New("bucket not found")
	ch := make(chan error, 1)
	ch <- cause
	close(ch)
	c.handleWriteErrors(ch)

	if len(reported) != 1 {
		t.Fatalf("reported %d errors, want 1", len(reported))
	}
	if !errors.Is(reported[0], ErrWriteFailed) || !errors.Is(reported[0], cause) {
		t.Errorf("reported = %v, want ErrWriteFailed wrapping the cause", reported[0])
	}
}

func TestIntegration_WriteUplink(t *testing.T) {
	client := skipIfNoInfluxDB(t)

	var writeErr error
	client.SetOnError(func(err error) { writeErr = err })
	client.WriteUplink(Uplink{ApplicationID: "app", DeviceID: "dev", DevEUI: "0011", Payload: json.RawMessage(`{"v":1}`)})
	client.Flush()

	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
