package adjudication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/domain/mocks"
)

const tenantID = "tenant-001"

func request(score float64, critical bool, indicators ...string) domain.AdjudicationRequest {
	return domain.AdjudicationRequest{
		TenantID: tenantID,
		Message:  domain.PaymentMessage{ID: "msg-001", Amount: "15000.00", Currency: "USD"},
		FraudScore: domain.FraudScore{
			MessageID:  "msg-001",
			Score:      score,
			Critical:   critical,
			Indicators: indicators,
		},
		Indicators: indicators,
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, RiskLow, LevelFor(0))
	assert.Equal(t, RiskLow, LevelFor(0.29))
	assert.Equal(t, RiskMedium, LevelFor(0.3))
	assert.Equal(t, RiskMedium, LevelFor(0.69))
	assert.Equal(t, RiskHigh, LevelFor(0.7))
	assert.Equal(t, RiskHigh, LevelFor(1))
}

func TestPolicy(t *testing.T) {
	p := NewPolicy()
	ctx := context.Background()

	tests := []struct {
		name     string
		req      domain.AdjudicationRequest
		expected domain.AdjudicationDecision
	}{
		{"CriticalHeld", request(0.26, true, "Sender BIC carries test marker"), domain.DecisionHold},
		{"HighWithManyIndicatorsRejected", request(0.75, false, "a", "b", "c"), domain.DecisionReject},
		{"HighHeld", request(0.75, false, "a"), domain.DecisionHold},
		{"MediumApproved", request(0.5, false, "a", "b", "c"), domain.DecisionApprove},
		{"LowApproved", request(0.1, false), domain.DecisionApprove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := p.Adjudicate(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.Decision)
			assert.NotEmpty(t, resp.Reasoning)
			assert.Equal(t, tt.req.Indicators, resp.RiskFactors)
		})
	}

	t.Run("FallsBackToScoreIndicators", func(t *testing.T) {
		req := request(0.75, false, "a", "b", "c")
		req.Indicators = nil
		resp, err := p.Adjudicate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionReject, resp.Decision)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.Adjudicate(cctx, request(0.1, false))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCached(t *testing.T) {
	ctx := context.Background()

	t.Run("CachesDefinitiveVerdict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		inner := mocks.NewMockAdjudicator(ctrl)
		inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).
			Return(domain.AdjudicationResponse{Decision: domain.DecisionApprove, Confidence: 0.7}, nil).
			Times(1)

		c := NewCached(inner, cache.NewLRUCache(10), time.Hour)

		first, err := c.Adjudicate(ctx, request(0.72, false))
		require.NoError(t, err)
		second, err := c.Adjudicate(ctx, request(0.72, false))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("DoesNotCacheHold", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		inner := mocks.NewMockAdjudicator(ctrl)
		inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).
			Return(domain.AdjudicationResponse{Decision: domain.DecisionHold}, nil).
			Times(2)

		c := NewCached(inner, cache.NewLRUCache(10), time.Hour)
		c.Adjudicate(ctx, request(0.72, false))
		c.Adjudicate(ctx, request(0.72, false))
	})

	t.Run("DifferentScoreMisses", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		inner := mocks.NewMockAdjudicator(ctrl)
		inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).
			Return(domain.AdjudicationResponse{Decision: domain.DecisionReject}, nil).
			Times(2)

		c := NewCached(inner, cache.NewLRUCache(10), time.Hour)
		c.Adjudicate(ctx, request(0.72, false))
		c.Adjudicate(ctx, request(0.75, false))
	})

	t.Run("ErrorNotCached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		inner := mocks.NewMockAdjudicator(ctrl)
		boom := errors.New("down")
		gomock.InOrder(
			inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).Return(domain.AdjudicationResponse{}, boom),
			inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).Return(domain.AdjudicationResponse{Decision: domain.DecisionApprove}, nil),
		)

		c := NewCached(inner, cache.NewLRUCache(10), time.Hour)
		_, err := c.Adjudicate(ctx, request(0.72, false))
		assert.ErrorIs(t, err, boom)

		resp, err := c.Adjudicate(ctx, request(0.72, false))
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionApprove, resp.Decision)
	})

	t.Run("RedisBacked", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rc, err := cache.NewRedisCache(mr.Addr(), "", 0)
		require.NoError(t, err)
		defer rc.Close()

		ctrl := gomock.NewController(t)
		inner := mocks.NewMockAdjudicator(ctrl)
		inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).
			Return(domain.AdjudicationResponse{Decision: domain.DecisionReject, Confidence: 0.8}, nil).
			Times(1)

		c := NewCached(inner, rc, time.Hour)
		_, err = c.Adjudicate(ctx, request(0.9, false))
		require.NoError(t, err)

		key := "harrier:" + tenantID + ":" + CacheKey(request(0.9, false))
		assert.True(t, mr.Exists(key))
		assert.Equal(t, time.Hour, mr.TTL(key))

		resp, err := c.Adjudicate(ctx, request(0.9, false))
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionReject, resp.Decision)
	})

	t.Run("CacheDownFallsThrough", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rc, err := cache.NewRedisCache(mr.Addr(), "", 0)
		require.NoError(t, err)
		defer rc.Close()
		mr.SetError("ERR cache unavailable")

		ctrl := gomock.NewController(t)
		inner := mocks.NewMockAdjudicator(ctrl)
		inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).
			Return(domain.AdjudicationResponse{Decision: domain.DecisionApprove}, nil)

		resp, err := NewCached(inner, rc, time.Hour).Adjudicate(ctx, request(0.72, false))
		require.NoError(t, err)
		assert.Equal(t, domain.DecisionApprove, resp.Decision)
	})
}

func TestBusClientRoundTrip(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	sub, err := NewResponder(b, NewPolicy()).Serve(ctx, tenantID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	client := NewBusClient(b, domain.DefaultConfig().Adjudication)

	reqCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := client.Adjudicate(reqCtx, request(0.26, true, "Sender BIC carries test marker"))
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionHold, resp.Decision)
	assert.Equal(t, []string{"Sender BIC carries test marker"}, resp.RiskFactors)
	assert.Equal(t, "closed", client.State())
}

func TestBusClientResponderError(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	inner := mocks.NewMockAdjudicator(ctrl)
	inner.EXPECT().Adjudicate(gomock.Any(), gomock.Any()).Return(domain.AdjudicationResponse{}, errors.New("model offline"))

	sub, err := NewResponder(b, inner).Serve(ctx, tenantID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	reqCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	_, err = NewBusClient(b, domain.DefaultConfig().Adjudication).Adjudicate(reqCtx, request(0.75, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
}

func TestBusClientBreakerOpens(t *testing.T) {
	b := bus.NewChannelBus(100)
	defer b.Close()

	cfg := domain.DefaultConfig().Adjudication
	cfg.BreakerFailures = 2
	cfg.BreakerOpenDuration = time.Minute
	client := NewBusClient(b, cfg)

	// No responder: every request times out.
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := client.Adjudicate(ctx, request(0.75, false))
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, "open", client.State())

	start := time.Now()
	_, err := client.Adjudicate(context.Background(), request(0.75, false))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
