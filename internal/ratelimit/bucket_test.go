package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinCapacity(t *testing.T) {
	b := New(20)
	now := time.Now()

	for i := 0; i < 20; i++ {
		if !b.allowAt(now, 1) {
			t.Fatalf("allow %d = false, want true", i+1)
		}
	}
	// 21st call in the same window must be denied.
	if b.allowAt(now, 1) {
		t.Error("allow 21 = true, want false")
	}
}

func TestDenialHasNoSideEffects(t *testing.T) {
	b := New(2)
	now := time.Now()

	if !b.allowAt(now, 2) {
		t.Fatal("allow(2) = false, want true")
	}
	// Repeated denials must not consume anything.
	for i := 0; i < 5; i++ {
		if b.allowAt(now, 1) {
			t.Fatalf("denied call %d consumed tokens", i+1)
		}
	}
	if b.tokens != 0 {
		t.Errorf("tokens = %d, want 0", b.tokens)
	}
}

func TestWindowHardReset(t *testing.T) {
	b := New(3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		b.allowAt(now, 1)
	}
	if b.allowAt(now.Add(59*time.Second), 1) {
		t.Error("allow before window boundary = true, want false")
	}

	// Crossing the boundary refills to full capacity, not partially.
	later := now.Add(61 * time.Second)
	for i := 0; i < 3; i++ {
		if !b.allowAt(later, 1) {
			t.Fatalf("allow %d after reset = false, want true", i+1)
		}
	}
	if b.allowAt(later, 1) {
		t.Error("allow beyond refilled capacity = true, want false")
	}
}

func TestAllowLargerThanRemaining(t *testing.T) {
	b := New(5)
	now := time.Now()

	if !b.allowAt(now, 3) {
		t.Fatal("allow(3) = false, want true")
	}
	if b.allowAt(now, 3) {
		t.Error("allow(3) with 2 remaining = true, want false")
	}
	if !b.allowAt(now, 2) {
		t.Error("allow(2) with 2 remaining = false, want true")
	}
}
