package exception

import (
	"testing"
	"time"
)

func TestBackoff_Next(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 4 * time.Second, Factor: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := b.Next(i + 1); got != w {
			t.Fatalf("attempt=%d got=%s want=%s", i+1, got, w)
		}
	}
}

func TestBackoff_JitterStaysWithinFraction(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		got := b.Next(2)
		if got < 200*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("got=%s want within [200ms,300ms]", got)
		}
	}
}
