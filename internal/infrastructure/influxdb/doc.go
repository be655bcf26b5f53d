// Package influxdb records environment and arbitration telemetry in
// InfluxDB v2 for historical queries and dashboards.
//
// All writes are asynchronous and batched. The arbitration loop never
// blocks on telemetry; if InfluxDB is down, points are dropped and the
// failure is logged. The package is optional and only wired when
// influxdb.enabled is true in config.
package influxdb
