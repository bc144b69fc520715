package forecast

import "math/rand/v2"

// Source is the randomness a trial draws from.
type Source interface {
	Normal(mean, stdDev float64) float64
	Uniform(lo, hi float64) float64
}

// SourceFactory returns the source for one trial. Trials never share a source.
type SourceFactory func(seed uint64, trial int) Source

type pcgSource struct {
	r *rand.Rand
}

// NewPCGSource returns a PCG-backed source for the given seed and stream.
func NewPCGSource(seed, stream uint64) Source {
	return &pcgSource{r: rand.New(rand.NewPCG(seed, stream))}
}

func (p *pcgSource) Normal(mean, stdDev float64) float64 {
	return mean + stdDev*p.r.NormFloat64()
}

func (p *pcgSource) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*p.r.Float64()
}

// PCGSources derives an independent PCG stream per trial from the top-level seed.
func PCGSources(seed uint64, trial int) Source {
	return NewPCGSource(seed, uint64(trial))
}
