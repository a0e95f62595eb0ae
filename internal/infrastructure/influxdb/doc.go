// Package influxdb records compositor metrics in InfluxDB v2.
//
// Two measurements are written:
//   - content_state: one point per content state change, tagged by content,
//     category, target state and result
//   - compositor_tick: per-update counters (events dispatched, pending
//     commands, registered contents, update duration)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	client.WriteTick(influxdb.TickStats{Tick: now, Events: n, At: time.Now()})
//
// Writes are batched per the batch_size and flush_interval settings and
// never block the caller.
package influxdb
