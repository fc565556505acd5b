package bittiming

import (
	"go.einride.tech/can"
)

// FrameDuration bounds the on-wire time of one frame at a given timing.
// BestCase assumes no dynamic stuff bits, WorstCase one stuff bit per four
// stuffable bits.
type FrameDuration struct {
	BestCaseBits  int
	WorstCaseBits int
	BestCaseSec   float64
	WorstCaseSec  float64
}

// Classic frame field sizes (ISO 11898-1). The stuffable region runs from
// SOF through the CRC sequence; delimiters, ACK, EOF and intermission are
// fixed-form.
const (
	classicStdOverhead  = 44 + 3 // fields + 3-bit intermission, standard ID
	classicExtOverhead  = 64 + 3 // same, extended ID
	classicStdStuffable = 34
	classicExtStuffable = 54
)

// FrameTime bounds the transmission time of a classic CAN frame at the
// given derived timing. Remote frames carry no data bytes regardless of
// their DLC.
func FrameTime(f can.Frame, d Derived) FrameDuration {
	dataBits := 8 * int(f.Length)
	if f.IsRemote {
		dataBits = 0
	}

	bits := classicStdOverhead + dataBits
	stuffable := classicStdStuffable + dataBits
	if f.IsExtended {
		bits = classicExtOverhead + dataBits
		stuffable = classicExtStuffable + dataBits
	}
	worst := bits + (stuffable-1)/4

	bitTime := d.TimeQuantumSec * float64(d.TimeQuantaPerBit)
	return FrameDuration{
		BestCaseBits:  bits,
		WorstCaseBits: worst,
		BestCaseSec:   float64(bits) * bitTime,
		WorstCaseSec:  float64(worst) * bitTime,
	}
}

// fdDataLengths are the payload sizes a CAN-FD DLC can express.
var fdDataLengths = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// FDRoundPayload rounds a payload length up to the next length a CAN-FD
// DLC can encode.
func FDRoundPayload(n int) (int, error) {
	for _, l := range fdDataLengths {
		if n <= l {
			return l, nil
		}
	}
	return 0, invalid("payloadLen", "exceeds the CAN-FD maximum of 64 bytes")
}

// FDFrameTime bounds the transmission time of a CAN-FD frame with bit rate
// switching: header and trailer run at the arbitration timing, everything
// from ESI through the CRC delimiter at the data timing. Field sizes follow
// ISO 11898-1:2015 (gray-coded stuff count, CRC17 up to 16 data bytes,
// CRC21 above, fixed stuff bits in the CRC field). The payload length is
// rounded up to the next encodable DLC.
func FDFrameTime(payloadLen int, extended bool, arb, data Derived) (FrameDuration, error) {
	n, err := FDRoundPayload(payloadLen)
	if err != nil {
		return FrameDuration{}, err
	}

	// Nominal-rate portion: SOF..BRS, then ACK, ACK delimiter, EOF and
	// intermission after the rate switches back.
	arbBits := 17 + 12
	if extended {
		arbBits = 36 + 12
	}

	crcLen := 17
	if n > 16 {
		crcLen = 21
	}
	// Fixed stuff bits: one ahead of the stuff count, one after every
	// four CRC bits.
	fixedStuff := 1 + crcLen/4
	// ESI + DLC + data + stuff count + CRC + fixed stuff + CRC delimiter.
	dataBits := 1 + 4 + 8*n + 4 + crcLen + fixedStuff + 1
	// Dynamic stuffing only applies up to the end of the data field.
	dataStuffable := 1 + 4 + 8*n

	arbBitTime := arb.TimeQuantumSec * float64(arb.TimeQuantaPerBit)
	dataBitTime := data.TimeQuantumSec * float64(data.TimeQuantaPerBit)

	worstData := dataBits + (dataStuffable-1)/4
	return FrameDuration{
		BestCaseBits:  arbBits + dataBits,
		WorstCaseBits: arbBits + worstData,
		BestCaseSec:   float64(arbBits)*arbBitTime + float64(dataBits)*dataBitTime,
		WorstCaseSec:  float64(arbBits)*arbBitTime + float64(worstData)*dataBitTime,
	}, nil
}
