package bittiming

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Phase selects which part of a CAN-FD frame a timing applies to. Classic
// CAN controllers only have the arbitration phase.
type Phase int

const (
	// PhaseArbitration covers ID, DLC and the other fields sent at the
	// nominal rate.
	PhaseArbitration Phase = iota
	// PhaseData covers the payload; CAN-FD switches to the second baud
	// rate here.
	PhaseData
)

func (p Phase) String() string {
	switch p {
	case PhaseArbitration:
		return "arbitration"
	case PhaseData:
		return "data"
	default:
		return "unknown"
	}
}

// Standard baud rates swept by the wizard, in kbps.
var (
	ClassicBaudRatesKbps = []int{250, 500, 800, 1000}
	FDDataBaudRatesKbps  = []int{250, 500, 800, 1000, 2000, 4000, 6000}
)

// MinimalSamplePointPct is the lowest sample point worth listing in a
// device sweep.
const MinimalSamplePointPct = 70.0

// PhaseTiming binds a parameter range to the phase it may be programmed for.
type PhaseTiming struct {
	Phase  Phase
	Bounds Bounds
}

// Device describes a CAN controller: its input clock and the parameter
// ranges its registers accept, per phase.
type Device struct {
	Name    string
	Comment string
	// InputClockHz is the controller input clock in Hz.
	InputClockHz float64
	// MaxBaudRateBps is the highest nominal rate the device supports.
	MaxBaudRateBps float64
	// MaxFDBaudRateBps is the highest data-phase rate; zero for classic
	// CAN devices.
	MaxFDBaudRateBps float64
	Timings          []PhaseTiming
}

// TimingFor returns the bounds programmed for the given phase.
func (d Device) TimingFor(phase Phase) (Bounds, bool) {
	for _, t := range d.Timings {
		if t.Phase == phase {
			return t.Bounds, true
		}
	}
	return Bounds{}, false
}

// BaudRatesBps lists the standard sweep rates the device can reach in the
// given phase, in bps.
func (d Device) BaudRatesBps(phase Phase) []float64 {
	var kbps []int
	var maxBps float64
	switch phase {
	case PhaseArbitration:
		kbps, maxBps = ClassicBaudRatesKbps, d.MaxBaudRateBps
	case PhaseData:
		kbps, maxBps = FDDataBaudRatesKbps, d.MaxFDBaudRateBps
	}
	var out []float64
	for _, k := range kbps {
		bps := float64(k) * 1000
		if bps <= maxBps {
			out = append(out, bps)
		}
	}
	return out
}

// BuiltinCatalog returns the devices known without a catalog file.
func BuiltinCatalog() []Device {
	return []Device{
		{
			Name:           "SJA1000",
			Comment:        "SJA1000 compatible CAN IP from OpenCores",
			InputClockHz:   24_000_000,
			MaxBaudRateBps: 1_000_000,
			Timings: []PhaseTiming{
				{Phase: PhaseArbitration, Bounds: Bounds{
					PrescalerMin: 1, PrescalerMax: 64,
					TSeg1Max: 16, TSeg2Max: 8, SJWMax: 4,
				}},
			},
		},
		{
			Name:             "XCANFD",
			Comment:          "Xilinx CANFD IP",
			InputClockHz:     80_000_000,
			MaxBaudRateBps:   1_000_000,
			MaxFDBaudRateBps: 2_000_000,
			Timings: []PhaseTiming{
				{Phase: PhaseArbitration, Bounds: Bounds{
					PrescalerMin: 1, PrescalerMax: 256,
					TSeg1Max: 64, TSeg2Max: 32, SJWMax: 16,
				}},
				{Phase: PhaseData, Bounds: Bounds{
					PrescalerMin: 1, PrescalerMax: 256,
					TSeg1Max: 16, TSeg2Max: 8, SJWMax: 4,
				}},
			},
		},
	}
}

// Catalog file layout. Ranges are inclusive; phase is "arbitration" or
// "data".
type catalogFile struct {
	Devices []deviceJSON `json:"devices"`
}

type deviceJSON struct {
	Name             string       `json:"name"`
	Comment          string       `json:"comment,omitempty"`
	InputClockHz     float64      `json:"input_clock_hz"`
	MaxBaudRateBps   float64      `json:"max_baud_rate_bps"`
	MaxFDBaudRateBps float64      `json:"max_fd_baud_rate_bps,omitempty"`
	Timings          []timingJSON `json:"timings"`
}

type timingJSON struct {
	Phase        string `json:"phase"`
	PrescalerMin int    `json:"prescaler_min"`
	PrescalerMax int    `json:"prescaler_max"`
	TSeg1Max     int    `json:"tseg1_max"`
	TSeg2Max     int    `json:"tseg2_max"`
	SJWMax       int    `json:"sjw_max"`
}

// LoadCatalog reads additional devices from a JSON catalog file.
func LoadCatalog(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if len(file.Devices) == 0 {
		return nil, fmt.Errorf("catalog %s defines no devices", path)
	}

	devices := make([]Device, 0, len(file.Devices))
	for _, dj := range file.Devices {
		if dj.Name == "" {
			return nil, fmt.Errorf("catalog device without a name")
		}
		if dj.InputClockHz <= 0 {
			return nil, fmt.Errorf("device %s: invalid input_clock_hz %g", dj.Name, dj.InputClockHz)
		}
		if dj.MaxBaudRateBps <= 0 {
			return nil, fmt.Errorf("device %s: invalid max_baud_rate_bps %g", dj.Name, dj.MaxBaudRateBps)
		}
		if len(dj.Timings) == 0 {
			return nil, fmt.Errorf("device %s: no timings", dj.Name)
		}

		dev := Device{
			Name:             dj.Name,
			Comment:          dj.Comment,
			InputClockHz:     dj.InputClockHz,
			MaxBaudRateBps:   dj.MaxBaudRateBps,
			MaxFDBaudRateBps: dj.MaxFDBaudRateBps,
		}
		for _, tj := range dj.Timings {
			var phase Phase
			switch tj.Phase {
			case "arbitration":
				phase = PhaseArbitration
			case "data":
				phase = PhaseData
			default:
				return nil, fmt.Errorf("device %s: unknown phase %q", dj.Name, tj.Phase)
			}
			bounds := Bounds{
				PrescalerMin: tj.PrescalerMin,
				PrescalerMax: tj.PrescalerMax,
				TSeg1Max:     tj.TSeg1Max,
				TSeg2Max:     tj.TSeg2Max,
				SJWMax:       tj.SJWMax,
			}
			if err := bounds.Validate(); err != nil {
				return nil, fmt.Errorf("device %s, phase %s: %w", dj.Name, tj.Phase, err)
			}
			dev.Timings = append(dev.Timings, PhaseTiming{Phase: phase, Bounds: bounds})
		}
		if _, ok := dev.TimingFor(PhaseData); dev.MaxFDBaudRateBps > 0 && !ok {
			return nil, fmt.Errorf("device %s: max_fd_baud_rate_bps set but no data phase timing", dj.Name)
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// FindDevice looks a device up by name across the builtin catalog and any
// loaded ones.
func FindDevice(catalogs [][]Device, name string) (Device, bool) {
	for _, cat := range catalogs {
		for _, d := range cat {
			if d.Name == name {
				return d, true
			}
		}
	}
	return Device{}, false
}

// SweepDevice enumerates timing candidates for one device phase and target
// baud rate, the way the interactive wizard fills its table: sample points
// below MinimalSamplePointPct are dropped unless the device bounds already
// set a floor, and the jump width aims for targetSJW (0 means the
// conventional default of 4).
func SweepDevice(ctx context.Context, dev Device, phase Phase, baudRateBps, samplePointTargetPct, tolerancePct float64, targetSJW int) ([]Candidate, error) {
	bounds, ok := dev.TimingFor(phase)
	if !ok {
		return nil, fmt.Errorf("device %s has no %s phase timing", dev.Name, phase)
	}
	if bounds.MinSamplePointPct == 0 {
		bounds.MinSamplePointPct = MinimalSamplePointPct
	}
	policy := SJWPolicy(nil)
	if targetSJW > 0 {
		policy = FixedSJW(targetSJW)
	}
	return Solve(ctx, Request{
		TargetBaudRateBps:    baudRateBps,
		InputClockHz:         dev.InputClockHz,
		SamplePointTargetPct: samplePointTargetPct,
		TolerancePct:         tolerancePct,
		Bounds:               bounds,
		SJW:                  policy,
	})
}
