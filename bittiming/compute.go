package bittiming

// SyncSeg is the synchronization segment length; fixed at one time quantum
// by the CAN standard.
const SyncSeg = 1

// Derived holds the quantities computed from a Config. None of them is
// stored on the Config; rebuild Derived whenever the inputs change.
type Derived struct {
	// TimeQuantumSec is the length of one time quantum in seconds.
	TimeQuantumSec float64
	// TimeQuantaPerBit is the number of time quanta in one bit time,
	// including the sync segment.
	TimeQuantaPerBit int
	// BaudRateBps is the resulting bit rate in bits per second.
	BaudRateBps float64
	// SamplePointPct is the sample point position inside the bit time,
	// in percent.
	SamplePointPct float64
}

// Derive computes the dependent quantities. The receiver must be a
// validated Config; derivation on a validated config cannot fail.
func (c Config) Derive() Derived {
	tq := float64(c.Prescaler) / c.InputClockHz
	nbt := SyncSeg + c.TSeg1 + c.TSeg2
	return Derived{
		TimeQuantumSec:   tq,
		TimeQuantaPerBit: nbt,
		BaudRateBps:      1 / (tq * float64(nbt)),
		SamplePointPct:   float64(SyncSeg+c.TSeg1) / float64(nbt) * 100,
	}
}

// Compute validates cfg and returns its derived values. Use this for
// configs assembled as literals; configs built through New are already
// validated and can call Derive directly.
func Compute(cfg Config) (Derived, error) {
	if err := cfg.Validate(); err != nil {
		return Derived{}, err
	}
	return cfg.Derive(), nil
}
