package control

// LowPassFilter is a first order filter. The first sample passes through
// unchanged and seeds the state.
type LowPassFilter struct {
	a, b  float64
	last  float64
	ready bool
}

// NewLowPassFilter builds a filter with time constant tau sampled every ts
// seconds. tau of zero disables filtering.
func NewLowPassFilter(tau, ts float64) *LowPassFilter {
	r := tau / ts
	return &LowPassFilter{
		a: 1 / (r + 1),
		b: r / (r + 1),
	}
}

// Filter returns the current estimate unchanged for a non-finite sample.
func (f *LowPassFilter) Filter(v float64) float64 {
	if !isFinite(v) {
		return f.last
	}
	if f.ready {
		v = f.a*v + f.b*f.last
	} else {
		f.ready = true
	}
	f.last = v
	return v
}

func (f *LowPassFilter) Value() float64 { return f.last }

func (f *LowPassFilter) Reset() {
	f.last = 0
	f.ready = false
}
