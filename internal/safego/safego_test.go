package safego

import (
	"sync"
	"testing"
	"time"
)

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("goroutine did not complete within timeout")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	Go("test", func() {
		defer wg.Done()
	})
	waitTimeout(t, &wg)
}

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	// This should not crash the test process; the panic must be recovered.
	Go("panicky", func() {
		defer wg.Done()
		panic("intentional panic in test")
	})
	waitTimeout(t, &wg)
}

func TestGoTracked_WaitsAndRecovers(t *testing.T) {
	var wg sync.WaitGroup
	ran := make(chan struct{}, 2)

	GoTracked(&wg, "ok", func() { ran <- struct{}{} })
	GoTracked(&wg, "panicky", func() {
		ran <- struct{}{}
		panic("boom")
	})
	waitTimeout(t, &wg)

	if len(ran) != 2 {
		t.Errorf("ran %d functions, want 2", len(ran))
	}
}
