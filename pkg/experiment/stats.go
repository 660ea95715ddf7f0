package experiment

import (
	"fmt"
	"math"
	"time"
)

// VariantStats are the live counters for one variant.
type VariantStats struct {
	VariantID      string  `json:"variant_id"`
	UsersAssigned  int64   `json:"users_assigned"`
	Conversions    int64   `json:"conversions"`
	TotalValue     float64 `json:"total_value"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Comparison is the z-test verdict for one variant against the control.
type Comparison struct {
	VariantID string `json:"variant_id"`

	// Lift is the absolute conversion-rate difference, variant minus
	// control.
	Lift   float64 `json:"lift"`
	Z      float64 `json:"z_score"`
	PValue float64 `json:"p_value"`

	// ConfidenceInterval bounds the true lift at the configured
	// confidence level.
	ConfidenceInterval [2]float64 `json:"confidence_interval"`

	// Significant is true only when the p-value clears the threshold AND
	// both samples meet the minimum size. InsufficientData flags the
	// latter failing on its own.
	Significant      bool   `json:"significant"`
	InsufficientData bool   `json:"insufficient_data"`
	Recommendation   string `json:"recommendation"`
}

// Result is a full experiment evaluation at a point in time.
type Result struct {
	ExperimentID string         `json:"experiment_id"`
	ControlID    string         `json:"control_id"`
	Variants     []VariantStats `json:"variants"`
	Comparisons  []Comparison   `json:"comparisons"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// criticalValue95 is the two-tailed z critical value at 95% confidence,
// used for the confidence interval bounds.
const criticalValue95 = 1.96

// analyze runs the two-proportion z-test for every variant against the
// control, which is always the first declared variant.
func analyze(experimentID string, stats []VariantStats, cfg Config, now time.Time) *Result {
	result := &Result{
		ExperimentID: experimentID,
		Variants:     stats,
		GeneratedAt:  now,
	}
	if len(stats) == 0 {
		return result
	}

	control := stats[0]
	result.ControlID = control.VariantID
	for _, variant := range stats[1:] {
		result.Comparisons = append(result.Comparisons, compare(control, variant, cfg))
	}
	return result
}

// compare evaluates one variant against the control. The verdict is never
// significant below the minimum sample size, no matter how extreme the
// observed difference.
func compare(control, variant VariantStats, cfg Config) Comparison {
	c := Comparison{
		VariantID: variant.VariantID,
		Lift:      variant.ConversionRate - control.ConversionRate,
		PValue:    1,
	}

	n1, n2 := float64(control.UsersAssigned), float64(variant.UsersAssigned)
	if n1 > 0 && n2 > 0 {
		p1, p2 := control.ConversionRate, variant.ConversionRate

		// Pooled standard error under the null hypothesis of equal rates.
		pooled := (float64(control.Conversions) + float64(variant.Conversions)) / (n1 + n2)
		se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
		if se > 0 {
			c.Z = (p2 - p1) / se
			c.PValue = 2 * (1 - normalCDF(math.Abs(c.Z)))
		}

		// The interval uses the unpooled standard error of the difference.
		seDiff := math.Sqrt(p1*(1-p1)/n1 + p2*(1-p2)/n2)
		c.ConfidenceInterval = [2]float64{
			c.Lift - criticalValue95*seDiff,
			c.Lift + criticalValue95*seDiff,
		}
	}

	if control.UsersAssigned < cfg.MinSampleSize || variant.UsersAssigned < cfg.MinSampleSize {
		c.InsufficientData = true
		c.Recommendation = fmt.Sprintf(
			"collect at least %d users per variant before acting on this result",
			cfg.MinSampleSize)
		return c
	}

	c.Significant = c.PValue < 1-cfg.ConfidenceLevel
	switch {
	case !c.Significant:
		c.Recommendation = "no statistically detectable difference; keep the experiment running"
	case c.Lift > 0:
		c.Recommendation = fmt.Sprintf("variant %q outperforms the control", variant.VariantID)
	default:
		c.Recommendation = fmt.Sprintf("the control outperforms variant %q", variant.VariantID)
	}
	return c
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
