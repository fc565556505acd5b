package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.einride.tech/can"

	"can-timing-core/bittiming"
	"can-timing-core/utils"
)

type RunnerConfig struct {
	DeviceName     string
	CatalogPath    string
	BaudKbps       int
	IncludeFD      bool
	SamplePointPct float64
	TolerancePct   float64
	TargetSJW      int
	// ClockMHz overrides the catalog input clock when non-zero.
	ClockMHz      float64
	ShowRegisters bool
	Interface     string
}

type Runner struct {
	cfg RunnerConfig
	log *utils.Logger
	dev bittiming.Device
}

func NewRunner(cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	catalogs := [][]bittiming.Device{bittiming.BuiltinCatalog()}
	if cfg.CatalogPath != "" {
		extra, err := bittiming.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		catalogs = append(catalogs, extra)
		log.Debug("Loaded %d device(s) from %s", len(extra), cfg.CatalogPath)
	}

	dev, ok := bittiming.FindDevice(catalogs, cfg.DeviceName)
	if !ok {
		return nil, fmt.Errorf("unknown device %q", cfg.DeviceName)
	}
	if cfg.ClockMHz > 0 {
		clock := cfg.ClockMHz * 1e6
		if clock != dev.InputClockHz {
			log.Warn("Overriding %s input clock: %.0f Hz -> %.0f Hz", dev.Name, dev.InputClockHz, clock)
		}
		dev.InputClockHz = clock
	}

	return &Runner{cfg: cfg, log: log, dev: dev}, nil
}

func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Device %s (%s), clock=%.0f Hz, target SP=%.1f%% tol=%.1f",
		r.dev.Name, r.dev.Comment, r.dev.InputClockHz, r.cfg.SamplePointPct, r.cfg.TolerancePct)

	phases := []bittiming.Phase{bittiming.PhaseArbitration}
	if r.cfg.IncludeFD {
		if _, ok := r.dev.TimingFor(bittiming.PhaseData); ok {
			phases = append(phases, bittiming.PhaseData)
		} else {
			r.log.Warn("Device %s has no data phase timing; skipping FD sweep", r.dev.Name)
		}
	}

	for _, phase := range phases {
		rates := r.dev.BaudRatesBps(phase)
		if r.cfg.BaudKbps > 0 {
			rates = []float64{float64(r.cfg.BaudKbps) * 1000}
		}
		for _, rate := range rates {
			if err := r.sweep(ctx, phase, rate); err != nil {
				return err
			}
		}
	}

	if r.cfg.Interface != "" {
		return r.probe(ctx)
	}
	return nil
}

func (r *Runner) sweep(ctx context.Context, phase bittiming.Phase, baudBps float64) error {
	cands, err := bittiming.SweepDevice(ctx, r.dev, phase, baudBps,
		r.cfg.SamplePointPct, r.cfg.TolerancePct, r.cfg.TargetSJW)
	if err != nil {
		return fmt.Errorf("sweep %s phase at %.0f bps: %w", phase, baudBps, err)
	}

	fmt.Printf("\n%s phase, %.1f kbps: %d candidate(s)\n", phase, baudBps/1000, len(cands))
	if len(cands) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	header := "SP [%]\tTQ [ns]\tTQ/bit\tTSEG1\tTSEG2\tPrescaler\tSJW"
	if r.cfg.ShowRegisters {
		header += "\tCNF1/2/3\tBTR0/1"
	}
	fmt.Fprintln(w, header)
	for _, c := range cands {
		row := fmt.Sprintf("%.1f\t%.3f\t%d\t%d\t%d\t%d\t%d",
			c.Derived.SamplePointPct,
			c.Derived.TimeQuantumSec*1e9,
			c.Derived.TimeQuantaPerBit,
			c.Config.TSeg1,
			c.Config.TSeg2,
			c.Config.Prescaler,
			c.Config.SJW)
		if r.cfg.ShowRegisters {
			row += "\t" + mcpColumn(c.Config) + "\t" + sjaColumn(c.Config)
		}
		fmt.Fprintln(w, row)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best := cands[0]
	dur := bittiming.FrameTime(can.Frame{ID: 0x123, Length: 8}, best.Derived)
	r.log.Debug("Best candidate at %.1f kbps: 8-byte frame takes %.1f..%.1f us",
		baudBps/1000, dur.BestCaseSec*1e6, dur.WorstCaseSec*1e6)
	return nil
}

func mcpColumn(cfg bittiming.Config) string {
	regs, err := bittiming.EncodeMCP2515(cfg, bittiming.SplitTSeg1(cfg.TSeg1))
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%02X/%02X/%02X", regs.CNF1, regs.CNF2, regs.CNF3)
}

func sjaColumn(cfg bittiming.Config) string {
	regs, err := bittiming.EncodeSJA1000(cfg, false)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%02X/%02X", regs.BTR0, regs.BTR1)
}

// probe transmits a marker frame on the configured interface and listens
// briefly for other traffic. The bit rate itself is programmed outside this
// tool (ip link set ... bitrate); the probe only confirms the bus accepts
// frames once configured.
func (r *Runner) probe(ctx context.Context) error {
	r.log.Info("Probing %s", r.cfg.Interface)

	p, err := utils.NewBusProbe(ctx, r.cfg.Interface)
	if err != nil {
		return err
	}
	defer p.Close()

	frame := can.Frame{ID: 0x7FF, Length: 2, Data: can.Data{0xB7, 0x01}}
	if err := p.Send(ctx, frame); err != nil {
		return fmt.Errorf("probe transmit on %s: %w", r.cfg.Interface, err)
	}
	r.log.Info("Probe frame sent on %s", r.cfg.Interface)

	seen, ok, err := p.WaitForTraffic(ctx, 2*time.Second)
	if err != nil {
		return fmt.Errorf("probe receive on %s: %w", r.cfg.Interface, err)
	}
	if ok {
		r.log.Info("Bus traffic seen: id=0x%X len=%d", uint32(seen.ID), seen.Length)
	} else {
		r.log.Warn("No bus traffic within 2s; bus may be idle or misconfigured")
	}
	return nil
}
