package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the compositor.
const (
	MeasurementContentState = "content_state"
	MeasurementTick         = "compositor_tick"
)

// ContentTransition is one content state change as recorded in InfluxDB.
type ContentTransition struct {
	ContentID uint64
	Category  uint64
	From      string
	To        string
	Result    string
	// Tick is the controller timestamp (milliseconds) of the change.
	Tick uint64
	At   time.Time
}

// TickStats summarises one controller update.
type TickStats struct {
	Tick     uint64
	Duration time.Duration
	Events   int
	Contents int
	Pending  int
	At       time.Time
}

// WriteContentTransition records a content state change. Non-blocking.
//
// Example:
//
//	client.WriteContentTransition(influxdb.ContentTransition{
//	    ContentID: 42, Category: 1, From: "available", To: "ready", Result: "ok",
//	    Tick: now, At: time.Now(),
//	})
func (c *Client) WriteContentTransition(tr ContentTransition) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(contentTransitionPoint(tr))
}

// WriteTick records per-update counters. Non-blocking.
func (c *Client) WriteTick(stats TickStats) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(tickPoint(stats))
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func contentTransitionPoint(tr ContentTransition) *write.Point {
	result := tr.Result
	if result == "" {
		result = "ok"
	}
	return write.NewPoint(
		MeasurementContentState,
		map[string]string{
			"content_id": strconv.FormatUint(tr.ContentID, 10),
			"category":   strconv.FormatUint(tr.Category, 10),
			"to_state":   tr.To,
			"result":     result,
		},
		map[string]any{
			"from_state": tr.From,
			"tick":       tr.Tick,
		},
		stamp(tr.At),
	)
}

func tickPoint(stats TickStats) *write.Point {
	return write.NewPoint(
		MeasurementTick,
		nil,
		map[string]any{
			"tick":        stats.Tick,
			"duration_us": stats.Duration.Microseconds(),
			"events":      stats.Events,
			"contents":    stats.Contents,
			"pending":     stats.Pending,
		},
		stamp(stats.At),
	)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
