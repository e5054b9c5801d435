package utils

import (
	"math"
	"slices"
	"time"
)

// Summary describes a sample of finite measurements
type Summary struct {
	N      int     `json:"n"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
}

// Summarize computes a Summary, ignoring NaN and infinite values.
// An empty or all-invalid sample yields the zero Summary.
func Summarize(values []float64) Summary {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return Summary{}
	}
	slices.Sort(finite)

	sum := 0.0
	for _, v := range finite {
		sum += v
	}
	mean := sum / float64(len(finite))

	sq := 0.0
	for _, v := range finite {
		d := v - mean
		sq += d * d
	}

	return Summary{
		N:      len(finite),
		Min:    finite[0],
		Max:    finite[len(finite)-1],
		Mean:   mean,
		StdDev: math.Sqrt(sq / float64(len(finite))),
		Median: percentileSorted(finite, 50),
	}
}

// percentileSorted interpolates linearly between the closest ranks
func percentileSorted(sorted []float64, p float64) float64 {
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	w := index - float64(lower)
	return sorted[lower]*(1-w) + sorted[upper]*w
}

// FormatNanos renders a solver time given in nanoseconds, rounded to a
// precision that fits its magnitude.
func FormatNanos(ns float64) string {
	if math.IsNaN(ns) || math.IsInf(ns, 0) {
		return "n/a"
	}
	d := time.Duration(ns)
	switch {
	case d < time.Microsecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Microsecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
