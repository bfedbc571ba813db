package iobuf

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SpeedMeter tracks a rolling transfer rate and, optionally, enforces a
// rate cap. It is fed on every successful read/write per spec.md §4.3
// ("The speed meter, if attached, is fed on every successful
// read/write; it supplies rate and ETA strings for UI.") and doubles as
// the rate limiter token bucket for spec.md §4.10's per-direction
// bucket, built on golang.org/x/time/rate — the same package the
// teacher's fs/accounting test suite exercises for bandwidth limiting
// (see SPEC_FULL.md).
type SpeedMeter struct {
	mu        sync.Mutex
	samples   []sample
	total     int64
	limiter   *rate.Limiter
	window    time.Duration
	totalSize int64 // expected total, for ETA; 0 if unknown
}

type sample struct {
	at    time.Time
	bytes int64
}

// NewSpeedMeter creates an unlimited meter with a 30-second rolling
// window.
func NewSpeedMeter() *SpeedMeter {
	return &SpeedMeter{window: 30 * time.Second}
}

// SetLimit installs (or, with 0, clears) a rate cap in bytes/second,
// per spec.md §8 property 10 ("limit-rate=0 disables").
func (m *SpeedMeter) SetLimit(bytesPerSecond float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytesPerSecond <= 0 {
		m.limiter = nil
		return
	}
	burst := int(bytesPerSecond)
	if burst < 1 {
		burst = 1
	}
	m.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

// SetExpectedTotal records the expected total byte count, for ETA.
func (m *SpeedMeter) SetExpectedTotal(n int64) {
	m.mu.Lock()
	m.totalSize = n
	m.mu.Unlock()
}

// Observe records n bytes transferred just now.
func (m *SpeedMeter) Observe(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.samples = append(m.samples, sample{at: now, bytes: n})
	m.total += n
	m.trimLocked(now)
}

func (m *SpeedMeter) trimLocked(now time.Time) {
	cut := now.Add(-m.window)
	i := 0
	for i < len(m.samples) && m.samples[i].at.Before(cut) {
		i++
	}
	if i > 0 {
		m.samples = append([]sample(nil), m.samples[i:]...)
	}
}

// Rate returns the current rolling-window bytes/second rate.
func (m *SpeedMeter) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.trimLocked(now)
	if len(m.samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range m.samples {
		sum += s.bytes
	}
	elapsed := now.Sub(m.samples[0].at).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	return float64(sum) / elapsed
}

// Total returns the cumulative bytes observed.
func (m *SpeedMeter) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// ETA returns a human string estimate of time remaining, or "" if
// unknown (no expected total, or rate is zero).
func (m *SpeedMeter) ETA() string {
	m.mu.Lock()
	total, expected := m.total, m.totalSize
	m.mu.Unlock()
	if expected <= 0 || total >= expected {
		return ""
	}
	r := m.Rate()
	if r <= 0 {
		return "--:--"
	}
	remaining := float64(expected-total) / r
	d := time.Duration(remaining) * time.Second
	h := int(d.Hours())
	mnt := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mnt, s)
	}
	return fmt.Sprintf("%02d:%02d", mnt, s)
}

// RateString formats the current rate as a human string, e.g. "1.2MiB/s".
func (m *SpeedMeter) RateString() string {
	r := m.Rate()
	units := []string{"B/s", "KiB/s", "MiB/s", "GiB/s", "TiB/s"}
	i := 0
	for r >= 1024 && i < len(units)-1 {
		r /= 1024
		i++
	}
	return fmt.Sprintf("%.1f%s", r, units[i])
}

// TryN asks the rate limiter for n bytes without blocking. It returns
// (true, 0) when the bytes may move now; otherwise it returns false and
// the limiter's suggested delay (one second when n exceeds the burst).
// In the cooperative scheduler model a refused Task parks itself on a
// timer for that delay rather than blocking the one scheduler goroutine.
func (m *SpeedMeter) TryN(n int) (bool, time.Duration) {
	m.mu.Lock()
	limiter := m.limiter
	m.mu.Unlock()
	if limiter == nil {
		return true, 0
	}
	r := limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.Delay()
	if delay <= 0 {
		return true, 0
	}
	r.Cancel()
	return false, delay
}
