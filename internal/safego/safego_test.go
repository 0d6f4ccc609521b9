package safego

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine did not complete within timeout")
	}
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go("test-runner", func() {
		close(done)
	})
	waitFor(t, done)
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	Go("test-panicker", func() {
		defer close(done)
		panic("intentional panic in test")
	})
	waitFor(t, done)
}
