// Package safego provides panic-recovering goroutine launchers for background work.
package safego

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged under name rather than crashing the process. Use it for fire-and-forget
// work such as ledger shipping and scheduled sweeps.
func Go(name string, fn func()) {
	go run(name, fn)
}

// GoTracked is Go with wg.Add/Done bracketing so callers can wait for in-flight work.
func GoTracked(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		run(name, fn)
	}()
}

func run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in background goroutine",
				"goroutine", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
