package adjudication

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Cached remembers definitive verdicts so a replayed message is not adjudicated twice.
// HOLD is never cached; a held message is worth asking about again.
type Cached struct {
	inner domain.Adjudicator
	cache domain.Cache
	ttl   time.Duration
}

// NewCached wraps inner with a verdict cache.
func NewCached(inner domain.Adjudicator, cache domain.Cache, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: cache, ttl: ttl}
}

// CacheKey identifies a verdict by message and the score it was asked about.
func CacheKey(req domain.AdjudicationRequest) string {
	return fmt.Sprintf("adjudication:%s:%.4f", req.Message.ID, req.FraudScore.Score)
}

// Adjudicate implements domain.Adjudicator. Cache failures degrade to a direct call.
func (c *Cached) Adjudicate(ctx context.Context, req domain.AdjudicationRequest) (domain.AdjudicationResponse, error) {
	key := CacheKey(req)

	data, err := c.cache.Get(ctx, req.TenantID, key)
	if err != nil {
		slog.Warn("adjudication cache read failed", "tenant_id", req.TenantID, "key", key, "error", err)
	} else if data != nil {
		var resp domain.AdjudicationResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			return resp, nil
		}
		slog.Warn("discarding corrupt cached verdict", "tenant_id", req.TenantID, "key", key)
	}

	resp, err := c.inner.Adjudicate(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.Decision == domain.DecisionApprove || resp.Decision == domain.DecisionReject {
		if data, err := json.Marshal(resp); err == nil {
			if err := c.cache.Set(ctx, req.TenantID, key, data, c.ttl); err != nil {
				slog.Warn("adjudication cache write failed", "tenant_id", req.TenantID, "key", key, "error", err)
			}
		}
	}

	return resp, nil
}
