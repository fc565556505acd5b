package bittiming

// Register encodings for two widely cloned controllers. Both derive their
// time quantum as 2*BRP/Fosc, so the model's prescaler must be even to be
// programmable: BRP = Prescaler/2.

// SegmentSplit divides TSeg1 into the propagation segment and phase
// segment 1 for controllers that program them as separate fields.
type SegmentSplit struct {
	PropSeg int
	Phase1  int
}

// SplitTSeg1 is the default split: the propagation segment gets the larger
// half, leaving phase segment 1 as room for resynchronization.
func SplitTSeg1(tseg1 int) SegmentSplit {
	phase1 := tseg1 / 2
	return SegmentSplit{PropSeg: tseg1 - phase1, Phase1: phase1}
}

// MCP2515Registers holds the three bit-timing configuration registers of
// the Microchip MCP2515 (CNF1 0x2A, CNF2 0x29, CNF3 0x28).
type MCP2515Registers struct {
	CNF1 byte
	CNF2 byte
	CNF3 byte
}

// btlMode forces phase segment 2 to come from CNF3 instead of tracking
// phase segment 1.
const btlMode = 0x80

// EncodeMCP2515 maps a validated config onto MCP2515 register values.
// split must partition cfg.TSeg1; pass SplitTSeg1(cfg.TSeg1) for the
// default partition.
func EncodeMCP2515(cfg Config, split SegmentSplit) (MCP2515Registers, error) {
	if err := cfg.Validate(); err != nil {
		return MCP2515Registers{}, err
	}
	if cfg.Prescaler%2 != 0 {
		return MCP2515Registers{}, invalid("prescaler", "must be even (controller quantum is 2*BRP/Fosc)")
	}
	brp := cfg.Prescaler / 2
	if brp < 1 || brp > 64 {
		return MCP2515Registers{}, invalid("prescaler", "BRP out of range 1..64")
	}
	if split.PropSeg+split.Phase1 != cfg.TSeg1 {
		return MCP2515Registers{}, invalid("tseg1", "segment split does not add up to tseg1")
	}
	if split.PropSeg < 1 || split.PropSeg > 8 {
		return MCP2515Registers{}, invalid("propSeg", "out of range 1..8")
	}
	if split.Phase1 < 1 || split.Phase1 > 8 {
		return MCP2515Registers{}, invalid("phase1", "out of range 1..8")
	}
	if cfg.TSeg2 < 2 || cfg.TSeg2 > 8 {
		return MCP2515Registers{}, invalid("tseg2", "out of range 2..8")
	}
	if cfg.SJW > 4 {
		return MCP2515Registers{}, invalid("sjw", "out of range 1..4")
	}
	return MCP2515Registers{
		CNF1: byte(cfg.SJW-1)<<6 | byte(brp-1),
		CNF2: btlMode | byte(split.Phase1-1)<<3 | byte(split.PropSeg-1),
		CNF3: byte(cfg.TSeg2 - 1),
	}, nil
}

// SJA1000Registers holds the two bus timing registers of the NXP SJA1000
// and its clones.
type SJA1000Registers struct {
	BTR0 byte
	BTR1 byte
}

// EncodeSJA1000 maps a validated config onto SJA1000 BTR0/BTR1 values.
// tripleSampling sets the SAM bit (three samples per bit, low speed buses
// only).
func EncodeSJA1000(cfg Config, tripleSampling bool) (SJA1000Registers, error) {
	if err := cfg.Validate(); err != nil {
		return SJA1000Registers{}, err
	}
	if cfg.Prescaler%2 != 0 {
		return SJA1000Registers{}, invalid("prescaler", "must be even (controller quantum is 2*BRP/Fosc)")
	}
	brp := cfg.Prescaler / 2
	if brp < 1 || brp > 64 {
		return SJA1000Registers{}, invalid("prescaler", "BRP out of range 1..64")
	}
	if cfg.TSeg1 > 16 {
		return SJA1000Registers{}, invalid("tseg1", "out of range 1..16")
	}
	if cfg.TSeg2 > 8 {
		return SJA1000Registers{}, invalid("tseg2", "out of range 1..8")
	}
	if cfg.SJW > 4 {
		return SJA1000Registers{}, invalid("sjw", "out of range 1..4")
	}
	regs := SJA1000Registers{
		BTR0: byte(cfg.SJW-1)<<6 | byte(brp-1),
		BTR1: byte(cfg.TSeg2-1)<<4 | byte(cfg.TSeg1-1),
	}
	if tripleSampling {
		regs.BTR1 |= 1 << 7
	}
	return regs, nil
}
