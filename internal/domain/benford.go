package domain

// BenfordReport characterizes the first-digit distribution of a batch.
// It is advisory and never replaces per-message scores.
type BenfordReport struct {
	SampleSize int        `json:"sampleSize"`
	Observed   [9]float64 `json:"observed"`
	Expected   [9]float64 `json:"expected"`
	ChiSquare  float64    `json:"chiSquare"`
	PValue     float64    `json:"pValue"`
	Deviation  float64    `json:"deviation"`

	// FraudProbability scales the deviation into [0,1].
	FraudProbability float64 `json:"fraudProbability"`

	Significant        bool `json:"significant"`
	InsufficientSample bool `json:"insufficientSample"`
}
