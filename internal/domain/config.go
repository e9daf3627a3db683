package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the complete Harrier configuration.
// Components receive copies of their sections at construction and never read
// configuration from globals afterwards.
type Config struct {
	Server ServerConfig `json:"server"`

	// Tier determines which backends are wired
	Tier Tier `json:"tier"`

	// Engine settings
	Validation   ValidationConfig   `json:"validation"`
	Analyzers    AnalyzerConfig     `json:"analyzers"`
	Scoring      ScoringConfig      `json:"scoring"`
	Benford      BenfordConfig      `json:"benford"`
	Routing      RoutingConfig      `json:"routing"`
	Splitter     SplitterConfig     `json:"splitter"`
	Batch        BatchConfig        `json:"batch"`
	Adjudication AdjudicationConfig `json:"adjudication"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ValidationConfig drives the message validator.
type ValidationConfig struct {
	RequiredFields     []string        `json:"requiredFields"`
	MinAmount          decimal.Decimal `json:"minAmount"`
	MaxAmount          decimal.Decimal `json:"maxAmount"`
	MaxReferenceLength int             `json:"maxReferenceLength"`
	ValueDateWindow    int             `json:"valueDateWindow"` // days either side of today
	KnownCurrencies    []string        `json:"knownCurrencies"`
	HighRiskCountries  []string        `json:"highRiskCountries"`
	RiskPatterns       []string        `json:"riskPatterns"`
}

// AnalyzerConfig drives the fraud indicator analyzers.
type AnalyzerConfig struct {
	HighAmount       decimal.Decimal `json:"highAmount"`
	RoundAmount      decimal.Decimal `json:"roundAmount"`
	PrecisionAmount  decimal.Decimal `json:"precisionAmount"`
	LowAmountFloor   decimal.Decimal `json:"lowAmountFloor"`
	HighRiskPatterns []string        `json:"highRiskPatterns"`
	TestMarkers      []string        `json:"testMarkers"`
	KeyboardPatterns []string        `json:"keyboardPatterns"`
	StaleAfterDays   int             `json:"staleAfterDays"`
}

// ScoringConfig holds the weight vectors for both combination modes.
type ScoringConfig struct {
	Weights        map[string]float64 `json:"weights"`
	BatchAnalyzers []string           `json:"batchAnalyzers"`
}

// BenfordConfig drives the batch first-digit test.
type BenfordConfig struct {
	MinSample         int     `json:"minSample"`
	SignificanceLevel float64 `json:"significanceLevel"`
}

// RoutingConfig holds disposition thresholds.
type RoutingConfig struct {
	ReviewThreshold   float64 `json:"reviewThreshold"`
	RejectThreshold   float64 `json:"rejectThreshold"`
	EscalateCritical  bool    `json:"escalateCritical"`
	BenfordAdjustment float64 `json:"benfordAdjustment"`
}

// BalancePolicy selects which legs are reconciled against the original amount.
type BalancePolicy string

const (
	// PolicyFeeCredit compares FEE + CREDIT against the original amount.
	PolicyFeeCredit BalancePolicy = "fee_credit"

	// PolicyDebit compares the DEBIT legs against the original amount.
	PolicyDebit BalancePolicy = "debit"
)

// SplitterConfig drives fee/credit/debit decomposition.
type SplitterConfig struct {
	FeeRate   decimal.Decimal `json:"feeRate"`
	Tolerance decimal.Decimal `json:"tolerance"`
	Policy    BalancePolicy   `json:"policy"`
}

// BatchConfig drives the orchestrator.
type BatchConfig struct {
	MaxWorkers          int  `json:"maxWorkers"`
	AdjudicationWorkers int  `json:"adjudicationWorkers"`
	AutoCorrect         bool `json:"autoCorrect"`
	AnomalyFactor       int  `json:"anomalyFactor"`
}

// AdjudicationConfig drives the REFER path.
type AdjudicationConfig struct {
	Timeout             time.Duration `json:"timeout"`
	CacheTTL            time.Duration `json:"cacheTtl"`
	BreakerFailures     uint32        `json:"breakerFailures"`
	BreakerOpenDuration time.Duration `json:"breakerOpenDuration"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-memory cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// KnownCurrencies returns the recognized ISO 4217 set. Codes outside it only warn.
func KnownCurrencies() []string {
	return []string{
		"USD", "EUR", "GBP", "JPY", "CHF", "CAD", "AUD", "NZD",
		"SEK", "NOK", "DKK", "PLN", "CZK", "HUF", "SGD", "HKD",
		"KRW", "CNY", "INR", "BRL", "MXN", "ZAR", "RUB", "TRY",
		"THB", "MYR", "IDR", "PHP", "VND", "EGP", "SAR", "AED",
		"QAR", "KWD", "BHD", "OMR", "JOD", "LBP", "ILS", "CLP",
		"COP", "PEN", "UYU", "ARS", "BOB", "PYG", "CRC", "GTQ",
		"HNL", "NIO", "PAB", "DOP", "JMD", "TTD", "BBD", "XCD",
	}
}

// HighRiskCountries returns the BIC country codes that raise a validation warning.
func HighRiskCountries() []string {
	return []string{
		"AF", "BY", "CF", "CG", "CU", "CD", "ER", "GN", "GW",
		"HT", "IR", "IQ", "LB", "LR", "LY", "ML", "MM", "NI",
		"KP", "RU", "SO", "SS", "SD", "SY", "VE", "YE", "ZW",
	}
}

// DefaultWeights is the routing-path weight vector.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		AnalyzerAmount:     0.4,
		AnalyzerPattern:    0.3,
		AnalyzerStructural: 0.2,
		AnalyzerTiming:     0.1,
	}
}

// DefaultValidationConfig returns validator defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		RequiredFields:     []string{"id", "type", "reference", "amount", "currency", "sender_bic", "receiver_bic", "value_date"},
		MinAmount:          decimal.RequireFromString("0.01"),
		MaxAmount:          decimal.RequireFromString("999999999.99"),
		MaxReferenceLength: 16,
		ValueDateWindow:    30,
		KnownCurrencies:    KnownCurrencies(),
		HighRiskCountries:  HighRiskCountries(),
		RiskPatterns:       []string{`999`, `000000`, `^TEST`, `^FAKE`, `^DEMO`},
	}
}

// DefaultAnalyzerConfig returns analyzer defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		HighAmount:       decimal.NewFromInt(1000000),
		RoundAmount:      decimal.NewFromInt(10000),
		PrecisionAmount:  decimal.NewFromInt(100000),
		LowAmountFloor:   decimal.NewFromInt(10),
		HighRiskPatterns: []string{`^TEST`, `^FAKE`, `^DEMO`, `999`, `000000`},
		TestMarkers:      []string{"TEST", "FAKE", "DEMO"},
		KeyboardPatterns: []string{"QWERTY", "ASDF", "ZXCV", "QWER", "ASDFG", "ZXCVB", "123456", "1234", "234567", "345678"},
		StaleAfterDays:   30,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Tier:       TierCommunity,
		Validation: DefaultValidationConfig(),
		Analyzers:  DefaultAnalyzerConfig(),
		Scoring: ScoringConfig{
			Weights:        DefaultWeights(),
			BatchAnalyzers: []string{AnalyzerAmount, AnalyzerPattern, AnalyzerStructural, AnalyzerReference},
		},
		Benford: BenfordConfig{
			MinSample:         10,
			SignificanceLevel: 0.05,
		},
		Routing: RoutingConfig{
			ReviewThreshold:   0.7,
			RejectThreshold:   0.8,
			EscalateCritical:  true,
			BenfordAdjustment: 0.1,
		},
		Splitter: SplitterConfig{
			FeeRate:   decimal.RequireFromString("0.10"),
			Tolerance: decimal.RequireFromString("0.01"),
			Policy:    PolicyFeeCredit,
		},
		Batch: BatchConfig{
			MaxWorkers:          8,
			AdjudicationWorkers: 4,
			AutoCorrect:         true,
			AnomalyFactor:       10,
		},
		Adjudication: AdjudicationConfig{
			Timeout:             5 * time.Second,
			CacheTTL:            24 * time.Hour,
			BreakerFailures:     5,
			BreakerOpenDuration: 30 * time.Second,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       5 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Batch.MaxWorkers = 32
	cfg.Tracing.Enabled = true
	return cfg
}
