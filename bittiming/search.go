package bittiming

import (
	"context"
	"math"
	"sort"
)

// Exactness threshold for reproducing the target baud rate. The search only
// keeps integer (prescaler, quanta-per-bit) pairs; this tolerance absorbs
// float64 rounding in the divide chain, not real rate deviation.
const baudRateRelEps = 1e-9

// Bounds limits the inverse search to what a concrete controller can
// program. All fields are inclusive.
type Bounds struct {
	PrescalerMin int
	PrescalerMax int
	TSeg1Max     int
	TSeg2Max     int
	SJWMax       int
	// MinSamplePointPct drops candidates sampling earlier than this
	// percentage. Zero disables the filter.
	MinSamplePointPct float64
}

// Validate checks that the bounds describe a non-empty search space.
func (b Bounds) Validate() error {
	if b.PrescalerMin < 1 {
		return invalid("prescalerMin", "must be at least 1")
	}
	if b.PrescalerMax < b.PrescalerMin {
		return invalid("prescalerMax", "must not be below prescalerMin")
	}
	if b.TSeg1Max < 1 {
		return invalid("tseg1Max", "must be at least 1")
	}
	if b.TSeg2Max < 1 {
		return invalid("tseg2Max", "must be at least 1")
	}
	if b.SJWMax < 1 {
		return invalid("sjwMax", "must be at least 1")
	}
	if b.MinSamplePointPct < 0 || b.MinSamplePointPct >= 100 {
		return invalid("minSamplePointPct", "must be in [0, 100)")
	}
	return nil
}

// SJWPolicy picks the sync jump width for a candidate split. The result is
// clamped to min(tseg1, tseg2, sjwMax) afterwards, so a policy only has to
// express the preference, not the hardware limits.
type SJWPolicy func(tseg1, tseg2, sjwMax int) int

// DefaultSJW aims for the conventional jump width of 4 time quanta.
func DefaultSJW(tseg1, tseg2, sjwMax int) int { return 4 }

// WidestSJW maximizes the resynchronization margin.
func WidestSJW(tseg1, tseg2, sjwMax int) int {
	return min(tseg1, tseg2, sjwMax)
}

// FixedSJW always aims for the given jump width, mirroring a user-entered
// target value.
func FixedSJW(target int) SJWPolicy {
	return func(tseg1, tseg2, sjwMax int) int { return target }
}

// Request describes one inverse search: reproduce TargetBaudRateBps exactly
// on a controller clocked at InputClockHz, sampling as close as possible to
// SamplePointTargetPct.
type Request struct {
	TargetBaudRateBps    float64
	InputClockHz         float64
	SamplePointTargetPct float64
	// TolerancePct is the maximum accepted absolute deviation of the
	// achieved sample point from the target, in percentage points.
	TolerancePct float64
	Bounds       Bounds
	// SJW selects the jump width for each candidate; nil means DefaultSJW.
	SJW SJWPolicy
}

func (r Request) validate() error {
	if r.TargetBaudRateBps <= 0 {
		return invalid("targetBaudRateBps", "must be a positive rate")
	}
	if r.InputClockHz <= 0 {
		return invalid("inputClockHz", "must be a positive frequency")
	}
	if r.SamplePointTargetPct <= 0 || r.SamplePointTargetPct >= 100 {
		return invalid("samplePointTargetPct", "must be in (0, 100)")
	}
	if r.TolerancePct < 0 {
		return invalid("tolerancePct", "must not be negative")
	}
	return r.Bounds.Validate()
}

// Candidate is one timing solution found by Solve, with its derived values
// and the sample point deviation that ordered it.
type Candidate struct {
	Config  Config
	Derived Derived
	// SamplePointErrPct is the absolute deviation of the achieved sample
	// point from the requested one, in percentage points.
	SamplePointErrPct float64
}

// Solve enumerates every (prescaler, tseg1, tseg2) combination inside the
// bounds that reproduces the target baud rate exactly and samples within
// the requested tolerance. Candidates are ordered by ascending sample point
// deviation, ties broken by ascending time quanta per bit (finer time
// resolution first). An empty result with a nil error means no integer
// combination fits; only malformed requests and context cancellation
// produce errors. Identical requests always return identical, identically
// ordered results.
func Solve(ctx context.Context, req Request) ([]Candidate, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	policy := req.SJW
	if policy == nil {
		policy = DefaultSJW
	}

	maxQuanta := SyncSeg + req.Bounds.TSeg1Max + req.Bounds.TSeg2Max
	var out []Candidate

	for p := req.Bounds.PrescalerMin; p <= req.Bounds.PrescalerMax; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tq := float64(p) / req.InputClockHz
		nbt := int(math.Round(1 / (tq * req.TargetBaudRateBps)))
		if nbt < SyncSeg+2 || nbt > maxQuanta {
			continue
		}
		achieved := req.InputClockHz / (float64(p) * float64(nbt))
		if math.Abs(achieved-req.TargetBaudRateBps) > baudRateRelEps*req.TargetBaudRateBps {
			continue
		}

		for tseg1 := 1; tseg1 <= req.Bounds.TSeg1Max; tseg1++ {
			tseg2 := nbt - SyncSeg - tseg1
			if tseg2 < 1 || tseg2 > req.Bounds.TSeg2Max {
				continue
			}
			sp := float64(SyncSeg+tseg1) / float64(nbt) * 100
			if req.Bounds.MinSamplePointPct > 0 && sp < req.Bounds.MinSamplePointPct {
				continue
			}
			dev := math.Abs(sp - req.SamplePointTargetPct)
			if dev > req.TolerancePct {
				continue
			}

			sjw := policy(tseg1, tseg2, req.Bounds.SJWMax)
			sjw = min(sjw, tseg1, tseg2, req.Bounds.SJWMax)
			if sjw < 1 {
				sjw = 1
			}

			cfg := Config{
				InputClockHz: req.InputClockHz,
				Prescaler:    p,
				TSeg1:        tseg1,
				TSeg2:        tseg2,
				SJW:          sjw,
			}
			out = append(out, Candidate{
				Config:            cfg,
				Derived:           cfg.Derive(),
				SamplePointErrPct: dev,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SamplePointErrPct != out[j].SamplePointErrPct {
			return out[i].SamplePointErrPct < out[j].SamplePointErrPct
		}
		return out[i].Derived.TimeQuantaPerBit < out[j].Derived.TimeQuantaPerBit
	})
	return out, nil
}

// SolveForBaudRate is the narrow call boundary for shells that only need
// the parameter sets: same search as Solve, candidates stripped to their
// configs.
func SolveForBaudRate(targetBaudRateBps, inputClockHz, samplePointTargetPct, tolerancePct float64, bounds Bounds) ([]Config, error) {
	cands, err := Solve(context.Background(), Request{
		TargetBaudRateBps:    targetBaudRateBps,
		InputClockHz:         inputClockHz,
		SamplePointTargetPct: samplePointTargetPct,
		TolerancePct:         tolerancePct,
		Bounds:               bounds,
	})
	if err != nil {
		return nil, err
	}
	cfgs := make([]Config, len(cands))
	for i, c := range cands {
		cfgs[i] = c.Config
	}
	return cfgs, nil
}
