package audio

import "math"

// Quality is a qualitative classification of capture signal quality,
// used to drive UI feedback.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// rank orders qualities from worst (0) to best (3).
func (q Quality) rank() int {
	switch q {
	case QualityExcellent:
		return 3
	case QualityGood:
		return 2
	case QualityFair:
		return 1
	default:
		return 0
	}
}

// downgrade returns the next lower quality step.
func (q Quality) downgrade() Quality {
	switch q {
	case QualityExcellent:
		return QualityGood
	case QualityGood:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Metrics describes one analyzed block of samples.
type Metrics struct {
	Level      float64 `json:"level"`      // scaled RMS, 0-1
	PeakLevel  float64 `json:"peak_level"` // max absolute sample, 0-1
	IsClipping bool    `json:"is_clipping"`
	Quality    Quality `json:"signal_quality"`
}

// AnalyzerConfig holds the classification thresholds. The level ladder
// must stay monotonic: a lower level never classifies better.
type AnalyzerConfig struct {
	LevelGain     float64 // RMS amplification for perceptual visibility
	ClipThreshold float64 // peak above this counts as clipping

	// Level ladder, high to low. Below GoodLevel the quality drops to
	// good, below FairLevel to fair, below PoorLevel to poor.
	GoodLevel float64
	FairLevel float64
	PoorLevel float64

	// Downgrade one extra step when the high-frequency energy share of a
	// supplied spectrum falls below this ratio.
	MinHighFreqRatio float64

	// Voice activity thresholds.
	EnergyThreshold float64
	ZCRThreshold    float64
}

// DefaultAnalyzerConfig returns the standard thresholds.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		LevelGain:        3.0,
		ClipThreshold:    0.95,
		GoodLevel:        0.15,
		FairLevel:        0.05,
		PoorLevel:        0.01,
		MinHighFreqRatio: 0.1,
		EnergyThreshold:  0.01,
		ZCRThreshold:     0.3,
	}
}

// Analyzer computes signal metrics over fixed-size sample blocks.
// It is stateless and safe for concurrent use.
type Analyzer struct {
	cfg AnalyzerConfig
}

// NewAnalyzer creates an analyzer. Zero-valued config fields fall back
// to the defaults.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	def := DefaultAnalyzerConfig()
	if cfg.LevelGain <= 0 {
		cfg.LevelGain = def.LevelGain
	}
	if cfg.ClipThreshold <= 0 {
		cfg.ClipThreshold = def.ClipThreshold
	}
	if cfg.GoodLevel <= 0 {
		cfg.GoodLevel = def.GoodLevel
	}
	if cfg.FairLevel <= 0 {
		cfg.FairLevel = def.FairLevel
	}
	if cfg.PoorLevel <= 0 {
		cfg.PoorLevel = def.PoorLevel
	}
	if cfg.MinHighFreqRatio <= 0 {
		cfg.MinHighFreqRatio = def.MinHighFreqRatio
	}
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = def.EnergyThreshold
	}
	if cfg.ZCRThreshold <= 0 {
		cfg.ZCRThreshold = def.ZCRThreshold
	}
	return &Analyzer{cfg: cfg}
}

// Analyze computes metrics for one block of samples in [-1, 1].
func (a *Analyzer) Analyze(samples []float32) Metrics {
	var sumSquares, peak float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}

	var rms float64
	if len(samples) > 0 {
		rms = math.Sqrt(sumSquares / float64(len(samples)))
	}
	level := math.Min(rms*a.cfg.LevelGain, 1)
	clipping := peak > a.cfg.ClipThreshold

	quality := QualityExcellent
	switch {
	case level < a.cfg.PoorLevel:
		quality = QualityPoor
	case level < a.cfg.FairLevel:
		quality = QualityFair
	case level < a.cfg.GoodLevel:
		quality = QualityGood
	}
	if clipping {
		quality = quality.downgrade()
	}

	return Metrics{
		Level:      level,
		PeakLevel:  peak,
		IsClipping: clipping,
		Quality:    quality,
	}
}

// AnalyzeSpectrum is Analyze with frequency-domain data available: the
// quality drops one extra step when high-frequency energy (top 30% of
// bins) holds less than MinHighFreqRatio of the total.
func (a *Analyzer) AnalyzeSpectrum(samples []float32, spectrum []float64) Metrics {
	m := a.Analyze(samples)
	if len(spectrum) == 0 {
		return m
	}
	if HighFreqRatio(spectrum) < a.cfg.MinHighFreqRatio {
		m.Quality = m.Quality.downgrade()
	}
	return m
}

// HighFreqRatio returns the share of spectral energy above 70% of the
// bin range. Returns 0 for an empty or silent spectrum.
func HighFreqRatio(spectrum []float64) float64 {
	var high, total float64
	cutoff := int(float64(len(spectrum)) * 0.7)
	for i, e := range spectrum {
		total += e
		if i > cutoff {
			high += e
		}
	}
	if total == 0 {
		return 0
	}
	return high / total
}

// ZeroCrossingRate returns the fraction of consecutive sample pairs that
// change sign. Voiced speech tends to cross less often than noise.
func ZeroCrossingRate(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// DetectVoice is a cheap two-feature gate for UI purposes: enough energy
// and a zero-crossing rate below the noise region. False positives and
// negatives are expected.
func (a *Analyzer) DetectVoice(samples []float32) bool {
	m := a.Analyze(samples)
	zcr := ZeroCrossingRate(samples)
	return m.Level > a.cfg.EnergyThreshold && zcr < a.cfg.ZCRThreshold
}
