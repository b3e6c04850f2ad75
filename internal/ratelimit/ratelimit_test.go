package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBudget(t *testing.T) {
	l := New(3, time.Minute, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
}

func TestBlocksAfterBudgetExceeded(t *testing.T) {
	l := New(2, time.Minute, time.Minute)
	l.Allow("10.0.0.2")
	l.Allow("10.0.0.2")
	if l.Allow("10.0.0.2") {
		t.Fatalf("third attempt within the window should be blocked")
	}
}

func TestResetClearsBlock(t *testing.T) {
	l := New(1, time.Minute, time.Minute)
	l.Allow("10.0.0.3")
	if l.Allow("10.0.0.3") {
		t.Fatalf("expected client to be blocked before reset")
	}
	l.Reset("10.0.0.3")
	if !l.Allow("10.0.0.3") {
		t.Fatalf("expected client to be allowed again after reset")
	}
}

func TestDifferentClientsAreIndependent(t *testing.T) {
	l := New(1, time.Minute, time.Minute)
	l.Allow("10.0.0.4")
	if !l.Allow("10.0.0.5") {
		t.Fatalf("a different client IP must not be affected by another's budget")
	}
}
