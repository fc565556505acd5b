package bittiming

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	cat := BuiltinCatalog()
	if len(cat) != 2 {
		t.Fatalf("expected 2 builtin devices, got %d", len(cat))
	}

	sja, ok := FindDevice([][]Device{cat}, "SJA1000")
	if !ok {
		t.Fatal("SJA1000 missing from builtin catalog")
	}
	if sja.InputClockHz != 24e6 {
		t.Errorf("SJA1000 clock = %g, want 24 MHz", sja.InputClockHz)
	}
	if _, ok := sja.TimingFor(PhaseData); ok {
		t.Error("SJA1000 must not have a data phase timing")
	}

	xcanfd, ok := FindDevice([][]Device{cat}, "XCANFD")
	if !ok {
		t.Fatal("XCANFD missing from builtin catalog")
	}
	if _, ok := xcanfd.TimingFor(PhaseData); !ok {
		t.Error("XCANFD must have a data phase timing")
	}
}

func TestBaudRatesBps(t *testing.T) {
	cat := BuiltinCatalog()
	sja, _ := FindDevice([][]Device{cat}, "SJA1000")
	xcanfd, _ := FindDevice([][]Device{cat}, "XCANFD")

	if got := sja.BaudRatesBps(PhaseArbitration); len(got) != 4 {
		t.Errorf("SJA1000 arbitration rates = %v, want the 4 standard rates", got)
	}
	if got := sja.BaudRatesBps(PhaseData); len(got) != 0 {
		t.Errorf("SJA1000 data rates = %v, want none", got)
	}

	dataRates := xcanfd.BaudRatesBps(PhaseData)
	for _, r := range dataRates {
		if r > xcanfd.MaxFDBaudRateBps {
			t.Errorf("data rate %g exceeds device maximum %g", r, xcanfd.MaxFDBaudRateBps)
		}
	}
	if len(dataRates) != 5 { // 250..1000 plus 2000 kbps
		t.Errorf("XCANFD data rates = %v, want 5 entries up to 2 Mbps", dataRates)
	}
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `{
		"devices": [{
			"name": "MCP2515",
			"comment": "Microchip standalone controller",
			"input_clock_hz": 16000000,
			"max_baud_rate_bps": 1000000,
			"timings": [{
				"phase": "arbitration",
				"prescaler_min": 2,
				"prescaler_max": 128,
				"tseg1_max": 16,
				"tseg2_max": 8,
				"sjw_max": 4
			}]
		}]
	}`)

	devices, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "MCP2515" {
		t.Fatalf("unexpected devices: %+v", devices)
	}
	bounds, ok := devices[0].TimingFor(PhaseArbitration)
	if !ok {
		t.Fatal("arbitration timing missing")
	}
	if bounds.PrescalerMax != 128 || bounds.TSeg1Max != 16 {
		t.Errorf("bounds not loaded: %+v", bounds)
	}
}

func TestLoadCatalog_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty devices", `{"devices": []}`},
		{"no name", `{"devices":[{"input_clock_hz":1,"max_baud_rate_bps":1,"timings":[{"phase":"arbitration","prescaler_min":1,"prescaler_max":1,"tseg1_max":1,"tseg2_max":1,"sjw_max":1}]}]}`},
		{"zero clock", `{"devices":[{"name":"x","max_baud_rate_bps":1,"timings":[{"phase":"arbitration","prescaler_min":1,"prescaler_max":1,"tseg1_max":1,"tseg2_max":1,"sjw_max":1}]}]}`},
		{"no timings", `{"devices":[{"name":"x","input_clock_hz":1,"max_baud_rate_bps":1,"timings":[]}]}`},
		{"bad phase", `{"devices":[{"name":"x","input_clock_hz":1,"max_baud_rate_bps":1,"timings":[{"phase":"nominal","prescaler_min":1,"prescaler_max":1,"tseg1_max":1,"tseg2_max":1,"sjw_max":1}]}]}`},
		{"bad bounds", `{"devices":[{"name":"x","input_clock_hz":1,"max_baud_rate_bps":1,"timings":[{"phase":"arbitration","prescaler_min":4,"prescaler_max":1,"tseg1_max":1,"tseg2_max":1,"sjw_max":1}]}]}`},
		{"fd rate without data phase", `{"devices":[{"name":"x","input_clock_hz":1,"max_baud_rate_bps":1,"max_fd_baud_rate_bps":2,"timings":[{"phase":"arbitration","prescaler_min":1,"prescaler_max":1,"tseg1_max":1,"tseg2_max":1,"sjw_max":1}]}]}`},
		{"not json", `devices:`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCatalog(writeCatalog(t, tt.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSweepDevice(t *testing.T) {
	sja, _ := FindDevice([][]Device{BuiltinCatalog()}, "SJA1000")

	cands, err := SweepDevice(context.Background(), sja, PhaseArbitration, 500_000, 80.0, 30, 0)
	if err != nil {
		t.Fatalf("SweepDevice: %v", err)
	}
	if len(cands) == 0 {
		t.Fatal("expected candidates for 500 kbps on the SJA1000")
	}
	for _, c := range cands {
		if c.Derived.SamplePointPct < MinimalSamplePointPct {
			t.Errorf("candidate %+v samples at %g%%, below the device floor", c.Config, c.Derived.SamplePointPct)
		}
		if !almostEqual(c.Derived.BaudRateBps, 500_000, 1e-3) {
			t.Errorf("candidate %+v misses 500 kbps: %g", c.Config, c.Derived.BaudRateBps)
		}
		if c.Config.SJW > 4 {
			t.Errorf("candidate %+v exceeds the device SJW limit", c.Config)
		}
	}
}

func TestSweepDevice_TargetSJW(t *testing.T) {
	sja, _ := FindDevice([][]Device{BuiltinCatalog()}, "SJA1000")

	cands, err := SweepDevice(context.Background(), sja, PhaseArbitration, 500_000, 80.0, 30, 2)
	if err != nil {
		t.Fatalf("SweepDevice: %v", err)
	}
	for _, c := range cands {
		want := min(2, c.Config.TSeg1, c.Config.TSeg2)
		if c.Config.SJW != want {
			t.Errorf("candidate %+v: sjw = %d, want %d", c.Config, c.Config.SJW, want)
		}
	}
}

func TestSweepDevice_MissingPhase(t *testing.T) {
	sja, _ := FindDevice([][]Device{BuiltinCatalog()}, "SJA1000")
	if _, err := SweepDevice(context.Background(), sja, PhaseData, 500_000, 80.0, 30, 0); err == nil {
		t.Error("sweeping a phase the device lacks must fail")
	}
}
