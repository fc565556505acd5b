package bittiming

import (
	"errors"
	"fmt"
)

// Config holds the five independent bit-timing parameters of a CAN
// controller. A Config built through New has passed validation; the derived
// quantities (time quantum, baud rate, sample point) are never stored and
// are recomputed from these fields on demand.
type Config struct {
	// InputClockHz is the controller's input oscillator frequency in Hz.
	InputClockHz float64
	// Prescaler divides the input clock to form the time quantum.
	Prescaler int
	// TSeg1 is time segment 1 (propagation segment + phase segment 1),
	// in time quanta.
	TSeg1 int
	// TSeg2 is time segment 2 (phase segment 2), in time quanta.
	TSeg2 int
	// SJW is the (re)synchronization jump width, in time quanta.
	SJW int
}

// InvalidParameterError reports a bit-timing parameter that violates a
// construction rule. Field names the offending parameter and Rule states the
// violated constraint, suitable for direct display to the user.
type InvalidParameterError struct {
	Field string
	Rule  string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Rule)
}

func invalid(field, rule string) *InvalidParameterError {
	return &InvalidParameterError{Field: field, Rule: rule}
}

// New builds a validated Config. Every violated rule is reported; when more
// than one field is out of range the returned error joins one
// *InvalidParameterError per violation.
func New(inputClockHz float64, prescaler, tseg1, tseg2, sjw int) (Config, error) {
	cfg := Config{
		InputClockHz: inputClockHz,
		Prescaler:    prescaler,
		TSeg1:        tseg1,
		TSeg2:        tseg2,
		SJW:          sjw,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every construction rule and joins the violations.
func (c Config) Validate() error {
	var errs []error
	if c.InputClockHz <= 0 {
		errs = append(errs, invalid("inputClockHz", "must be a positive frequency"))
	}
	if c.Prescaler < 1 {
		errs = append(errs, invalid("prescaler", "must be a positive integer"))
	}
	if c.TSeg1 < 1 {
		errs = append(errs, invalid("tseg1", "must be at least 1 time quantum"))
	}
	if c.TSeg2 < 1 {
		errs = append(errs, invalid("tseg2", "must be at least 1 time quantum"))
	}
	if c.SJW < 1 {
		errs = append(errs, invalid("sjw", "must be at least 1 time quantum"))
	} else if c.TSeg1 >= 1 && c.TSeg2 >= 1 && c.SJW > min(c.TSeg1, c.TSeg2) {
		errs = append(errs, invalid("sjw", "exceeds min(tseg1, tseg2)"))
	}
	return errors.Join(errs...)
}
