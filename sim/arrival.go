package sim

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// ArrivalSampler draws the gap between consecutive request arrivals.
type ArrivalSampler interface {
	// NextGap returns the time until the next arrival. Always > 0.
	NextGap(rng *rand.Rand) float64
}

// minGap keeps heavy-tailed samplers from emitting a zero gap, which would
// stack arrivals at one instant without bound.
const minGap = 1e-9

// ConstantSampler spaces arrivals exactly Gap apart and never draws.
type ConstantSampler struct {
	Gap float64
}

func (s *ConstantSampler) NextGap(_ *rand.Rand) float64 {
	return s.Gap
}

// PoissonSampler generates exponentially-distributed gaps (CV=1).
type PoissonSampler struct {
	mean float64
}

func (s *PoissonSampler) NextGap(rng *rand.Rand) float64 {
	return math.Max(minGap, rng.ExpFloat64()*s.mean)
}

// GammaSampler generates Gamma-distributed gaps. CV > 1 produces bursty
// arrivals. Uses Marsaglia-Tsang for shape >= 1 and the boost
// Gamma(a) = Gamma(a+1) * U^(1/a) below that.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // mean·CV²
}

func (s *GammaSampler) NextGap(rng *rand.Rand) float64 {
	return math.Max(minGap, gammaRand(rng, s.shape, s.scale))
}

func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullSampler generates Weibull-distributed gaps by inverse CDF.
type WeibullSampler struct {
	shape float64 // k
	scale float64 // λ
}

func (s *WeibullSampler) NextGap(rng *rand.Rand) float64 {
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return math.Max(minGap, s.scale*math.Pow(-math.Log(u), 1.0/s.shape))
}

// NewArrivalSampler builds the sampler for process with mean gap meanGap.
// cv is the coefficient of variation and only shapes gamma and weibull.
// Panics on an unknown process; SimConfig.Validate rejects those first.
func NewArrivalSampler(process ArrivalProcess, meanGap, cv float64) ArrivalSampler {
	switch process {
	case ArrivalConstant:
		return &ConstantSampler{Gap: meanGap}
	case ArrivalPoisson:
		return &PoissonSampler{mean: meanGap}
	case ArrivalGamma:
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &PoissonSampler{mean: meanGap}
		}
		return &GammaSampler{shape: shape, scale: meanGap * cv * cv}
	case ArrivalWeibull:
		k := weibullShapeFromCV(cv)
		return &WeibullSampler{shape: k, scale: meanGap / math.Gamma(1.0+1.0/k)}
	default:
		panic("NewArrivalSampler: unknown arrival process " + string(process))
	}
}

// weibullShapeFromCV finds k such that CV² = Γ(1+2/k)/Γ(1+1/k)² - 1 by
// bisection over [0.1, 100].
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		// CV is monotonically decreasing in k
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibullShapeFromCV: bisection did not converge for CV=%.3f; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
