// Package gateway runs the onkyod event loop.
//
// A Gateway owns every receiver session and client connection. Device
// reads, client reads and listener accepts happen on their own goroutines,
// but those goroutines only forward what they see as events on a single
// channel. One loop goroutine consumes the events, fires virtual sleep
// timers, paces device writes and broadcasts notifications, so none of the
// receiver state needs a lock.
//
// Clients speak a newline-terminated line protocol. Each line is dispatched
// to every attached receiver in registration order; status notifications
// decoded from any receiver are broadcast to every connected client and to
// the configured notifiers (MQTT, InfluxDB).
//
// Usage:
//
//	gw := gateway.New(gateway.Options{Logger: log})
//	dev, _ := receiver.OpenDevice("/dev/ttyS0", receiver.DefaultBaud)
//	gw.AddReceiver("living", dev, true)
//	ln, _ := gateway.Listen("tcp", ":8701")
//	gw.AddListener(ln)
//	err := gw.Run(ctx)
package gateway
