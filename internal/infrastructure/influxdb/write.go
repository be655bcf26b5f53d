package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// WriteEnvironment records an environment sample.
//
// Non-blocking: the point is queued and flushed in the next batch.
//
// Parameters:
//   - siteID: Site identifier tag
//   - temperature: Degrees Celsius
//   - humidity: Relative humidity percent
//   - light: Raw light reading (higher is darker)
//   - ts: Sample timestamp
func (c *Client) WriteEnvironment(siteID string, temperature, humidity float64, light int, ts time.Time) {
	point := influxdb2.NewPoint(
		"environment",
		map[string]string{
			"site": siteID,
		},
		map[string]any{
			"temperature": temperature,
			"humidity":    humidity,
			"light":       light,
		},
		ts,
	)
	c.writeAPI.WritePoint(point)
}

// WriteAccessEvent records an authentication outcome for trend analysis.
//
// Parameters:
//   - siteID: Site identifier tag
//   - method: "password", "fingerprint" or "two_factor"
//   - status: "granted" or "denied"
//   - ts: Event timestamp
func (c *Client) WriteAccessEvent(siteID, method, status string, ts time.Time) {
	point := influxdb2.NewPoint(
		"access_event",
		map[string]string{
			"site":   siteID,
			"method": method,
			"status": status,
		},
		map[string]any{
			"count": 1,
		},
		ts,
	)
	c.writeAPI.WritePoint(point)
}

// WriteSafetyTransition records an overheat trip or clear.
//
// Parameters:
//   - siteID: Site identifier tag
//   - state: "tripped" or "cleared"
//   - temperature: Temperature at the transition
//   - ts: Transition timestamp
func (c *Client) WriteSafetyTransition(siteID, state string, temperature float64, ts time.Time) {
	point := influxdb2.NewPoint(
		"safety_transition",
		map[string]string{
			"site":  siteID,
			"state": state,
		},
		map[string]any{
			"temperature": temperature,
		},
		ts,
	)
	c.writeAPI.WritePoint(point)
}
