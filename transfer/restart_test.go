package transfer

import (
	"testing"
	"time"
)

func TestRestartPolicyDelayGrowsExponentiallyAndCaps(t *testing.T) {
	p := RestartPolicy{Base: time.Second, Multiplier: 2, Max: 10 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{10, 10 * time.Second},
	}
	for _, c := range cases {
		got := p.Delay(c.attempt)
		if got != c.want {
			t.Errorf("Delay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestRestartPolicyExhausted(t *testing.T) {
	p := RestartPolicy{Base: time.Second, Multiplier: 2, Max: time.Minute, MaxRetries: 3}
	if p.Exhausted(2) {
		t.Fatal("should not be exhausted before reaching MaxRetries")
	}
	if !p.Exhausted(3) {
		t.Fatal("should be exhausted at MaxRetries")
	}
	unlimited := RestartPolicy{Base: time.Second}
	if unlimited.Exhausted(1000) {
		t.Fatal("MaxRetries <= 0 means unlimited")
	}
}
