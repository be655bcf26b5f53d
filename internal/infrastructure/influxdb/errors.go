package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
var (
	// ErrInvalidConfig indicates missing or malformed connection settings.
	ErrInvalidConfig = errors.New("influxdb: invalid configuration")

	// ErrHealthCheckFailed indicates the server is unreachable or unhealthy.
	ErrHealthCheckFailed = errors.New("influxdb: health check failed")
)
