package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"can-timing-core/utils"
)

func main() {
	var (
		device    = flag.String("device", "SJA1000", "Device name from the catalog")
		catalog   = flag.String("catalog", "", "Optional JSON device catalog to load in addition to the builtins")
		baudKbps  = flag.Int("baud", 0, "Baud rate in kbps; 0 sweeps the standard list")
		fd        = flag.Bool("fd", false, "Also sweep the CAN-FD data phase")
		sp        = flag.Float64("sp", 80.0, "Target sample point in percent")
		tol       = flag.Float64("tol", 30.0, "Accepted sample point deviation in percentage points")
		sjw       = flag.Int("sjw", 0, "Target SJW in time quanta; 0 uses the default of 4")
		clockMHz  = flag.Float64("clock", 0, "Override the device input clock, in MHz")
		registers = flag.Bool("registers", false, "Print MCP2515/SJA1000 register encodings where the ranges allow")
		iface     = flag.String("iface", "", "Optional SocketCAN interface to probe after calculation")
		logLevel  = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("bittiming_wizard.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open bittiming_wizard.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		DeviceName:     *device,
		CatalogPath:    *catalog,
		BaudKbps:       *baudKbps,
		IncludeFD:      *fd,
		SamplePointPct: *sp,
		TolerancePct:   *tol,
		TargetSJW:      *sjw,
		ClockMHz:       *clockMHz,
		ShowRegisters:  *registers,
		Interface:      *iface,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}
