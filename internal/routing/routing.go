// Package routing turns fraud scores into dispositions and resolves referrals.
package routing

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// maxReasonIndicators caps how many indicators a decision reason lists.
const maxReasonIndicators = 3

// Thresholds are the strict score boundaries for REFER and REJECT.
type Thresholds struct {
	Review float64 `json:"review"`
	Reject float64 `json:"reject"`
}

// Validate checks 0 <= Review <= Reject <= 1.
func (t Thresholds) Validate() error {
	if t.Review < 0 || t.Reject > 1 || t.Review > t.Reject {
		return fmt.Errorf("%w: review=%.2f reject=%.2f", domain.ErrInvalidThresholds, t.Review, t.Reject)
	}
	return nil
}

// Lowered returns the thresholds reduced by delta (floored at 0) when the
// Benford report is significant, and t unchanged otherwise.
func (t Thresholds) Lowered(report domain.BenfordReport, delta float64) Thresholds {
	if !report.Significant || delta <= 0 {
		return t
	}
	return Thresholds{
		Review: floorZero(t.Review - delta),
		Reject: floorZero(t.Reject - delta),
	}
}

// Router decides dispositions. It is pure and safe for concurrent use.
type Router struct {
	thresholds        Thresholds
	escalateCritical  bool
	benfordAdjustment float64
	now               func() time.Time
}

// NewRouter creates a router from routing configuration.
func NewRouter(cfg domain.RoutingConfig) (*Router, error) {
	th := Thresholds{Review: cfg.ReviewThreshold, Reject: cfg.RejectThreshold}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Router{
		thresholds:        th,
		escalateCritical:  cfg.EscalateCritical,
		benfordAdjustment: cfg.BenfordAdjustment,
		now:               time.Now,
	}, nil
}

// Thresholds returns the configured base thresholds.
func (r *Router) Thresholds() Thresholds {
	return r.thresholds
}

// ForBatch returns the thresholds to use for a batch with the given Benford report.
func (r *Router) ForBatch(report domain.BenfordReport) Thresholds {
	return r.thresholds.Lowered(report, r.benfordAdjustment)
}

// Decide maps a score to a disposition using strict comparisons:
// score > Reject is REJECT, score > Review is REFER, anything else is ADMIT.
// A critical score that would be admitted is referred instead when
// escalation is enabled.
func (r *Router) Decide(score domain.FraudScore, th Thresholds) domain.RoutingDecision {
	d := domain.RoutingDecision{
		MessageID:       score.MessageID,
		Score:           score.Score,
		ReviewThreshold: th.Review,
		RejectThreshold: th.Reject,
		DecidedAt:       r.now().UTC(),
	}

	switch {
	case score.Score > th.Reject:
		d.Disposition = domain.DispositionReject
		d.Status = domain.StatusRejected
		d.Reason = fmt.Sprintf("fraud score %.3f exceeds reject threshold %.2f%s", score.Score, th.Reject, summarize(score.Indicators))
	case score.Score > th.Review:
		d.Disposition = domain.DispositionRefer
		d.Status = domain.StatusPending
		d.Reason = fmt.Sprintf("fraud score %.3f exceeds review threshold %.2f%s", score.Score, th.Review, summarize(score.Indicators))
	case score.Critical && r.escalateCritical:
		d.Disposition = domain.DispositionRefer
		d.Status = domain.StatusPending
		d.Escalated = true
		d.Reason = fmt.Sprintf("critical indicator present at score %.3f%s", score.Score, summarize(score.Indicators))
	default:
		d.Disposition = domain.DispositionAdmit
		d.Status = domain.StatusClean
	}

	return d
}

// StatusFor maps an adjudication verdict to a final status. Unknown verdicts hold.
func StatusFor(decision domain.AdjudicationDecision) domain.FinalStatus {
	switch decision {
	case domain.DecisionApprove:
		return domain.StatusClean
	case domain.DecisionReject:
		return domain.StatusRejected
	default:
		return domain.StatusHeld
	}
}

func summarize(indicators []string) string {
	if len(indicators) == 0 {
		return ""
	}
	shown := indicators
	if len(shown) > maxReasonIndicators {
		shown = shown[:maxReasonIndicators]
	}
	s := ": " + strings.Join(shown, "; ")
	if extra := len(indicators) - len(shown); extra > 0 {
		s += fmt.Sprintf(" (+%d more)", extra)
	}
	return s
}

func floorZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
