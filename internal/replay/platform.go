package replay

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/brom"
	"github.com/muurk/bromdump/internal/logging"
)

// step is one stage of a platform sequence.
type step func(c *brom.Client) error

// Platform is the boot ROM traffic the vendor flash tool sends to one SoC
// before it pushes a Download Agent.
type Platform struct {
	// Chip is the catalog name
	Chip   string
	HWCode uint16

	identifyChip     step
	initPMIC         step
	disableWatchdog  step
	initRTC          step
	identifySoftware step
	initEMI          step

	// beforeJump runs between send_da and jump_da
	beforeJump step

	// Remaining lists the sizes of the reads that drain what the agent
	// sends after the jump, before it runs the piggybacked code.
	Remaining []int

	// Ack, if non-zero, is written once the remaining data is drained.
	Ack byte
}

// RemainingLength is the total number of bytes drained after the jump.
func (p *Platform) RemainingLength() int {
	n := 0
	for _, r := range p.Remaining {
		n += r
	}
	return n
}

var platforms = []*Platform{mt6573, mt6577, mt6589}

// Platforms returns every platform with a replay sequence.
func Platforms() []*Platform {
	return platforms
}

// ForHWCode returns the platform whose boot ROM reports code.
func ForHWCode(code uint16) (*Platform, error) {
	for _, p := range platforms {
		if p.HWCode == code {
			return p, nil
		}
	}
	return nil, &UnsupportedError{HWCode: code}
}

// ForChip returns the platform for a catalog chip name.
func ForChip(name string) (*Platform, error) {
	for _, p := range platforms {
		if p.Chip == name {
			return p, nil
		}
	}
	return nil, &UnsupportedError{Chip: name}
}

func logRegs16(c *brom.Client, label string, addrs ...uint32) error {
	for _, a := range addrs {
		v, err := c.ReadWord16(a)
		if err != nil {
			return err
		}
		logging.Info(label, logging.Hex32("addr", a), zap.String("value", fmt.Sprintf("0x%04x", v)))
	}
	return nil
}

func logRegs32(c *brom.Client, label string, from, to uint32) error {
	for a := from; a <= to; a += 4 {
		v, err := c.ReadWord32(a)
		if err != nil {
			return err
		}
		logging.Info(label, logging.Hex32("addr", a), logging.Hex32("value", v))
	}
	return nil
}

func logHWSWVersion(c *brom.Client) error {
	v, err := c.HWSWVersion()
	if err != nil {
		return err
	}
	logging.Info("Hardware",
		zap.String("subcode", fmt.Sprintf("0x%04x", v.SubCode)),
		zap.String("hw_version", fmt.Sprintf("0x%04x", v.HWVersion)),
		zap.String("sw_version", fmt.Sprintf("0x%04x", v.SWVersion)),
	)
	return nil
}

// rtcInit programs the RTC block at base the way the flash tool does:
// mask interrupts, load the reference values, unlock protection in two
// writes, then enable bus writes. Each change is committed through the
// write trigger at base+0x74.
func rtcInit(base uint32) step {
	return func(c *brom.Client) error {
		if err := logRegs16(c, "RTC register", base, base+0x50, base+0x54); err != nil {
			return err
		}

		commit := func() error {
			if err := c.Write16(base+0x74, 0x0001); err != nil {
				return err
			}
			_, err := c.ReadWord16(base)
			return err
		}

		groups := [][][2]uint32{
			{{0x10, 0x0000}, {0x08, 0x0000}, {0x0C, 0x0000}},
			{{0x50, 0xA357}, {0x54, 0x67D2}},
			{{0x68, 0x586A}},
			{{0x68, 0x9136}},
			{{0x00, 0x430E}},
		}
		for _, g := range groups {
			for _, w := range g {
				if err := c.Write16(base+w[0], uint16(w[1])); err != nil {
					return err
				}
			}
			if err := commit(); err != nil {
				return err
			}
		}
		return nil
	}
}

// identifySoftware asks twice for ME ID and target config, then for the
// boot ROM and preloader versions, as the flash tool does.
func identifySoftware(c *brom.Client) error {
	id, err := c.MEID()
	if err != nil {
		return err
	}
	logging.Info("ME ID", zap.String("value", fmt.Sprintf("%X", id)))
	if _, err := c.MEID(); err != nil {
		return err
	}

	tc, err := c.TargetConfig()
	if err != nil {
		return err
	}
	for _, line := range tc.Lines() {
		logging.Info(line)
	}
	if _, err := c.TargetConfig(); err != nil {
		return err
	}
	return bromVersions(c)
}

func bromVersions(c *brom.Client) error {
	v, err := c.BROMVersion()
	if err != nil {
		return err
	}
	logging.Info("BROM version", zap.String("value", fmt.Sprintf("0x%02x", v)))
	_, err = c.PreloaderVersion()
	return err
}

func emiInit(gena uint32) step {
	return func(c *brom.Client) error {
		was, err := c.ReadWord32(gena)
		if err != nil {
			return err
		}
		if err := c.Write32(gena, 0x00000002); err != nil {
			return err
		}
		logging.Info("EMI_GENA set", logging.Hex32("addr", gena), logging.Hex32("value", 2), logging.Hex32("was", was))
		return nil
	}
}

var mt6573 = &Platform{
	Chip:   "mt6573",
	HWCode: 0x6573,

	identifyChip: func(c *brom.Client) error {
		// the flash tool asks a second time
		if _, err := c.HWCode(); err != nil {
			return err
		}
		hw, err := c.Read16NoStatus(0x70026000, 1)
		if err != nil {
			return err
		}
		sw, err := c.Read16NoStatus(0x70026004, 1)
		if err != nil {
			return err
		}
		logging.Info("Hardware",
			zap.String("hw_version", fmt.Sprintf("0x%04x", hw[0])),
			zap.String("sw_version", fmt.Sprintf("0x%04x", sw[0])),
		)
		return nil
	},

	initPMIC: func(c *brom.Client) error {
		writes := [][3]uint32{
			{0x7002FE84, 0xFF04, 0xFF00}, // KPLED_CON1
			{0x7002FA0C, 0x2079, 0x3079}, // CHR_CON3
			{0x7002FA0C, 0x20F9, 0x2079}, // CHR_CON3
			{0x7002FA08, 0x5200, 0x4700}, // CHR_CON2
			{0x7002FA18, 0x0000, 0x0010}, // CHR_CON6
			{0x7002FA00, 0x7AB2, 0x62B2}, // CHR_CON0
			{0x7002FA20, 0x0800, 0x0000}, // CHR_CON8
			{0x7002FA28, 0x0100, 0x0000}, // CHR_CON10
			{0x7002FA24, 0x0180, 0x0080}, // CHR_CON9
		}
		for _, w := range writes {
			if err := c.Write16Verify(w[0], uint16(w[1]), uint16(w[2])); err != nil {
				return err
			}
		}
		return nil
	},

	disableWatchdog: func(c *brom.Client) error {
		if err := c.Write16(0x70025000, 0x2200); err != nil {
			return err
		}
		_, err := c.PreloaderVersion()
		return err
	},

	initRTC:          rtcInit(0x70014000),
	identifySoftware: identifySoftware,
	initEMI:          emiInit(0x70000000),

	// C0 03 02 83
	Remaining: []int{1, 1, 1, 1},
}

var mt6577 = &Platform{
	Chip:   "mt6577",
	HWCode: 0x6577,

	identifyChip: func(c *brom.Client) error {
		if _, err := c.HWCode(); err != nil {
			return err
		}
		return logHWSWVersion(c)
	},

	// holds the second CPU core in reset
	initPMIC: func(c *brom.Client) error {
		if _, err := c.ReadWord32(0xC0009024); err != nil { // PWR_CTL1
			return err
		}
		if _, err := c.ReadWord32(0xC0009010); err != nil { // RST_CTL0
			return err
		}
		if err := c.Write32(0xC0009010, 0x03000002); err != nil {
			return err
		}
		if err := c.Write32(0xC0009010, 0x03000000); err != nil {
			return err
		}
		_, err := c.ReadWord32(0xC0009010)
		return err
	},

	disableWatchdog: func(c *brom.Client) error {
		if _, err := c.ReadWord16(0xC0000000); err != nil {
			return err
		}
		if err := c.Write16(0xC0000000, 0x2264); err != nil {
			return err
		}
		if _, err := c.PreloaderVersion(); err != nil {
			return err
		}
		return logRegs16(c, "TOPRGU register",
			0xC0000000, 0xC0000004, 0xC0000008, 0xC000000C, 0xC0000010, 0xC0000014, 0xC0000018)
	},

	initRTC:          rtcInit(0xC1003000),
	identifySoftware: identifySoftware,
	initEMI:          emiInit(0xC0003070),

	Remaining: []int{1, 1, 1, 1},
}

var mt6589 = &Platform{
	Chip: "mt6589",
	// the boot ROM reports 0x6583
	HWCode: 0x6583,

	identifyChip: func(c *brom.Client) error {
		if err := logHWSWVersion(c); err != nil {
			return err
		}
		return c.UART1LogEnable()
	},

	initPMIC: func(c *brom.Client) error {
		if err := c.PowerInit(0x80000000, 0); err != nil {
			return err
		}
		if _, err := c.PowerRead16(0x000E); err != nil {
			return err
		}
		regs := [][3]uint16{
			{0x000E, 0x1001, 0x1001}, // CHR_CON7
			{0x000C, 0x0049, 0x0041}, // CHR_CON6
			{0x0008, 0x000C, 0x000F}, // CHR_CON4
			{0x001A, 0x0000, 0x0010}, // CHR_CON13
			{0x0000, 0x007B, 0x0063}, // CHR_CON0
			{0x0020, 0x0009, 0x0001}, // CHR_CON16
		}
		for _, r := range regs {
			if err := c.SetPowerReg(r[0], r[1], r[2]); err != nil {
				return err
			}
		}
		return c.PowerDeinit()
	},

	disableWatchdog: func(c *brom.Client) error {
		if err := c.Write32(0x10000000, 0x22002224); err != nil {
			return err
		}
		if _, err := c.PreloaderVersion(); err != nil {
			return err
		}
		return logRegs32(c, "TOPRGU register", 0x10000000, 0x10000018)
	},

	identifySoftware: bromVersions,
	initEMI:          emiInit(0x10203070),

	beforeJump: func(c *brom.Client) error {
		return c.UART1LogEnable()
	},

	// the last 16 bytes are the eMMC CID
	Remaining: []int{1, 4, 2, 10, 4, 16},
	Ack:       0x5A,
}
