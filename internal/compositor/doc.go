// Package compositor runs a content.Controller inside the service.
//
// Runner owns the controller. It is the only goroutine that touches it:
// a ticker drives Controller.Update, and everything else (API handlers,
// maintenance jobs) hands work to it through Do.
//
// Sink receives the controller's events and fans them out to the
// configured outputs: the log, MQTT, WebSocket clients, InfluxDB and the
// SQLite transition history. Every output is optional.
package compositor
