//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/onkyod/internal/gateway"
)

// forwardStatusDumps turns SIGUSR1 into a gateway status dump until the
// returned stop function is called.
func forwardStatusDumps(gw *gateway.Gateway) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigs:
				gw.RequestStatusDump()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
