// Package relay mirrors receiver notifications to MQTT and InfluxDB and
// feeds MQTT command topics back into the gateway.
//
// The gateway calls Notify from its event loop, so the relay only queues
// there; a worker started by Run does the network I/O. When the queue is
// full, notifications are dropped and counted rather than stalling the
// loop.
package relay
