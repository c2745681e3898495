//go:build !unix

package main

import "github.com/nerrad567/onkyod/internal/gateway"

// forwardStatusDumps is a no-op where SIGUSR1 does not exist.
func forwardStatusDumps(*gateway.Gateway) (stop func()) {
	return func() {}
}
