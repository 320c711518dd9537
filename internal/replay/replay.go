// Package replay reproduces the boot ROM traffic of the vendor flash tool
// so that a Download Agent, or a payload piggybacked on one, finds the SoC
// in the state it expects.
package replay

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/brom"
	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/logging"
)

// ErrNoPayloadAddress is returned for profiles without a BROM load address.
var ErrNoPayloadAddress = errors.New("chip profile has no BROM payload address")

// Identity is what the boot ROM reports about the chip.
type Identity struct {
	HWCode    uint16
	SubCode   uint16
	HWVersion uint16
	SWVersion uint16
}

// Identify reads the HW code and versions. mt6573 has no version command;
// its versions are read from the hardware registers instead.
func Identify(c *brom.Client) (Identity, error) {
	var id Identity
	code, err := c.HWCode()
	if err != nil {
		return id, err
	}
	id.HWCode = code
	logging.Info("HW code", zap.String("value", fmt.Sprintf("0x%04x", code)))

	if code == mt6573.HWCode {
		hw, err := c.Read16NoStatus(0x70026000, 1)
		if err != nil {
			return id, err
		}
		sw, err := c.Read16NoStatus(0x70026004, 1)
		if err != nil {
			return id, err
		}
		id.HWVersion, id.SWVersion = hw[0], sw[0]
		return id, nil
	}

	v, err := c.HWSWVersion()
	if err != nil {
		return id, err
	}
	id.SubCode, id.HWVersion, id.SWVersion = v.SubCode, v.HWVersion, v.SWVersion
	return id, nil
}

// Detect asks the boot ROM for its HW code and returns the matching
// platform and chip profile.
func Detect(c *brom.Client, db *chip.DB) (*Platform, *chip.Profile, error) {
	code, err := c.HWCode()
	if err != nil {
		return nil, nil, err
	}
	logging.Info("HW code", zap.String("value", fmt.Sprintf("0x%04x", code)))

	p, err := ForHWCode(code)
	if err != nil {
		return nil, nil, err
	}
	prof, err := db.Lookup(p.Chip)
	if err != nil {
		return nil, nil, err
	}
	return p, prof, nil
}

// Options selects how much of the sequence runs.
type Options struct {
	// Simple only disables the watchdog before pushing the payload
	Simple bool

	// SkipRemaining does not drain the agent's output after the jump.
	// Standalone payloads send nothing; piggybacked ones hang without it.
	SkipRemaining bool

	// OnStep, if set, is called before (done == false) and after each step
	// with its 1-based position in StepNames.
	OnStep func(index int, name string, done bool, err error)
}

// Result reports what the device answered.
type Result struct {
	Checksum  uint16
	Remaining []byte
}

type namedStep struct {
	name string
	fn   step
}

func (p *Platform) steps(opts Options) []namedStep {
	if opts.Simple {
		return []namedStep{{"disable watchdog", p.disableWatchdog}}
	}
	return []namedStep{
		{"identify chip", p.identifyChip},
		{"init PMIC", p.initPMIC},
		{"disable watchdog", p.disableWatchdog},
		{"init RTC", p.initRTC},
		{"identify software", p.identifySoftware},
		{"init EMI", p.initEMI},
	}
}

func (p *Platform) sequence(addr, sigLen uint32, payload []byte, opts Options, res *Result) []namedStep {
	var seq []namedStep
	for _, s := range p.steps(opts) {
		if s.fn != nil {
			seq = append(seq, s)
		}
	}
	seq = append(seq, namedStep{"send payload", func(c *brom.Client) error {
		logging.Info("Sending payload", logging.Hex32("addr", addr), zap.Int("size", len(payload)))
		sum, err := c.SendDA(addr, sigLen, payload)
		res.Checksum = sum
		if err == nil {
			logging.Info("Received DA checksum", zap.String("value", fmt.Sprintf("0x%04x", sum)))
		}
		return err
	}})
	if p.beforeJump != nil {
		seq = append(seq, namedStep{"prepare jump", p.beforeJump})
	}
	seq = append(seq, namedStep{"jump", func(c *brom.Client) error { return c.JumpDA(addr) }})
	if opts.SkipRemaining {
		return seq
	}
	return append(seq, namedStep{"receive remaining data", func(c *brom.Client) error {
		for _, n := range p.Remaining {
			data, err := c.ReadRaw(n)
			if err != nil {
				return err
			}
			logging.Info("<- DA", zap.String("data", fmt.Sprintf("%X", data)))
			res.Remaining = append(res.Remaining, data...)
		}
		if p.Ack != 0 {
			logging.Info("-> DA", zap.String("data", fmt.Sprintf("%02X", p.Ack)))
			return c.WriteRaw([]byte{p.Ack})
		}
		return nil
	}})
}

// StepNames lists the steps Replay runs for opts, in order.
func (p *Platform) StepNames(opts Options) []string {
	var names []string
	for _, s := range p.sequence(0, 0, nil, opts, &Result{}) {
		names = append(names, s.name)
	}
	return names
}

// Replay runs the platform sequence, pushes payload to the profile's
// payload address and jumps to it. The HW code must already have been
// read, as Detect does.
func Replay(ctx context.Context, c *brom.Client, p *Platform, prof *chip.Profile, payload []byte, opts Options) (*Result, error) {
	addr := prof.BROM.PayloadAddress
	if addr == 0 {
		return nil, fmt.Errorf("%s: %w", prof.Name, ErrNoPayloadAddress)
	}

	res := &Result{}
	for i, s := range p.sequence(addr, prof.BROM.SignatureLength, payload, opts, res) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logging.Info("Replay step", zap.String("chip", p.Chip), zap.String("step", s.name))
		if opts.OnStep != nil {
			opts.OnStep(i+1, s.name, false, nil)
		}
		err := s.fn(c)
		if opts.OnStep != nil {
			opts.OnStep(i+1, s.name, true, err)
		}
		if err != nil {
			return nil, &StepError{Chip: p.Chip, Step: s.name, Err: err}
		}
	}
	return res, nil
}
