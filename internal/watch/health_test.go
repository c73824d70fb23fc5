package watch

import (
	"errors"
	"testing"
)

func TestLinkHealthTransitions(t *testing.T) {
	h := newLinkHealth("pull", 3)

	if status, changed := h.statusChanged(); changed || status != statusHealthy {
		t.Fatalf("initial status = %v changed=%v, want healthy unchanged", status, changed)
	}

	h.recordFailure(errors.New("timeout"))
	if status, changed := h.statusChanged(); !changed || status != statusDegraded {
		t.Errorf("after 1 failure: status = %v changed=%v, want degraded changed", status, changed)
	}

	// A second failure stays degraded: no repeated transition.
	h.recordFailure(errors.New("timeout"))
	if _, changed := h.statusChanged(); changed {
		t.Error("second failure reported a transition, want none")
	}

	h.recordFailure(errors.New("refused"))
	if status, changed := h.statusChanged(); !changed || status != statusFailed {
		t.Errorf("at threshold: status = %v changed=%v, want failed changed", status, changed)
	}
	if h.lastError() != "refused" {
		t.Errorf("lastError = %q, want refused", h.lastError())
	}

	h.recordSuccess()
	if status, changed := h.statusChanged(); !changed || status != statusHealthy {
		t.Errorf("after success: status = %v changed=%v, want healthy changed", status, changed)
	}
}

func TestLinkHealthDefaultThreshold(t *testing.T) {
	h := newLinkHealth("push", 0)
	if h.threshold != 3 {
		t.Errorf("threshold = %d, want 3", h.threshold)
	}
}
