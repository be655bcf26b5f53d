package influxdb

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
)

// healthCheckTimeout bounds how long a health probe may take.
const healthCheckTimeout = 5 * time.Second

// Client wraps the InfluxDB v2 client for environment telemetry.
//
// Writes are non-blocking: points are queued in the client's internal
// buffer and flushed in batches by a background goroutine. Telemetry
// must never stall the arbitration loop, so write failures are logged
// and dropped rather than retried inline.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig
	logger   Logger

	// done stops the error-drain goroutine on Close.
	done chan struct{}
}

// Logger is the minimal logging surface the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect creates an InfluxDB client and starts the background
// error drain.
//
// Parameters:
//   - cfg: InfluxDB configuration (URL, token, org, bucket, batching)
//   - logger: Destination for asynchronous write errors
//
// Returns:
//   - *Client: Ready client (connection is verified lazily)
//   - error: If configuration is incomplete
func Connect(cfg config.InfluxDBConfig, logger Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: org and bucket are required", ErrInvalidConfig)
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval * 1000))

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	c := &Client{
		client:   client,
		writeAPI: writeAPI,
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go c.drainWriteErrors()

	return c, nil
}

// drainWriteErrors consumes the async error channel so failed batch
// writes are surfaced in the log instead of silently discarded.
func (c *Client) drainWriteErrors() {
	errCh := c.writeAPI.Errors()
	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return
			}
			if err != nil && c.logger != nil {
				c.logger.Warn("InfluxDB write failed", "error", err)
			}
		case <-c.done:
			return
		}
	}
}

// HealthCheck verifies the InfluxDB server is reachable.
//
// Parameters:
//   - ctx: Context for cancellation (a 5s timeout is applied on top)
//
// Returns:
//   - error: nil if the server reports healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHealthCheckFailed, err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("%w: status %s", ErrHealthCheckFailed, health.Status)
	}
	return nil
}

// Flush forces any buffered points to be written immediately.
// Used before shutdown and in tests.
func (c *Client) Flush() {
	c.writeAPI.Flush()
}

// Close flushes pending writes and releases client resources.
func (c *Client) Close() error {
	close(c.done)
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
