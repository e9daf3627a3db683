package main

import (
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Metrics is a confusion matrix over replayed messages.
type Metrics struct {
	mu sync.Mutex

	TruePositives  int64
	FalsePositives int64
	TrueNegatives  int64
	FalseNegatives int64
	Errors         int64
	ServerMs       int64
}

// Flagged reports whether a routed message was kept from admission.
// ok is false when the message failed before routing.
func Flagged(r domain.MessageResult) (flagged bool, ok bool) {
	if r.Decision == nil {
		return false, false
	}
	return r.Decision.Disposition != domain.DispositionAdmit, true
}

// Record adds one labelled outcome.
func (m *Metrics) Record(flagged, fraud bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case flagged && fraud:
		m.TruePositives++
	case flagged && !fraud:
		m.FalsePositives++
	case !flagged && !fraud:
		m.TrueNegatives++
	default:
		m.FalseNegatives++
	}
}

// AddErrors counts messages that produced no verdict.
func (m *Metrics) AddErrors(n int) {
	m.mu.Lock()
	m.Errors += int64(n)
	m.mu.Unlock()
}

// AddLatency accumulates server-side batch time.
func (m *Metrics) AddLatency(d time.Duration) {
	m.mu.Lock()
	m.ServerMs += d.Milliseconds()
	m.mu.Unlock()
}

// Total is the number of messages with a verdict.
func (m *Metrics) Total() int64 {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

func (m *Metrics) Precision() float64 {
	return ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
}

func (m *Metrics) Recall() float64 {
	return ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
}

func (m *Metrics) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (m *Metrics) Accuracy() float64 {
	return ratio(m.TruePositives+m.TrueNegatives, m.Total())
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
