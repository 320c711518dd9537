package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/muurk/bromdump/internal/brom"
)

// statusFail is the status the simulated boot ROM returns for a request
// it cannot carry out, such as loading outside RAM.
const statusFail = 0x1000

// BootROM serves the boot ROM download protocol for a simulated SoC.
// Register commands act on the SoC's bus; addresses nothing is mapped at
// behave as plain registers that read back what was written.
type BootROM struct {
	soc  *SoC
	regs map[uint32]uint32
	pmic map[uint16]uint16

	HWSubCode    uint16
	HWVersion    uint16
	SWVersion    uint16
	TargetConfig uint32
	MEID         []byte
	Version      byte

	// WriteStatus is returned for good register writes
	WriteStatus uint16

	// OnJump runs the code at addr once the host jumps to it. Serve
	// returns its result. Nil ends Serve at the jump.
	OnJump func(addr uint32, port io.ReadWriter) error

	// Commands records every opcode handled after the handshake
	Commands []byte
}

// NewBootROM returns a boot ROM for soc with plausible identification
// values.
func NewBootROM(soc *SoC) *BootROM {
	return &BootROM{
		soc:       soc,
		regs:      make(map[uint32]uint32),
		pmic:      make(map[uint16]uint16),
		HWSubCode: 0x8A00,
		HWVersion: 0xCA00,
		SWVersion: 0x0000,
		MEID:      []byte{0x4D, 0x54, 0x4B, 0x00, 0x53, 0x49, 0x4D, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		Version:   0x05,
	}
}

// PMIC returns the simulated PMIC register value.
func (b *BootROM) PMIC(reg uint16) uint16 {
	return b.pmic[reg]
}

// Register returns a value written to an unmapped register.
func (b *BootROM) Register(addr uint32) uint32 {
	return b.regs[addr]
}

// SetRegister presets an unmapped register.
func (b *BootROM) SetRegister(addr, val uint32) {
	b.regs[addr] = val
}

type port struct {
	rw  io.ReadWriter
	err error
}

func (p *port) read(n int) []byte {
	buf := make([]byte, n)
	if p.err != nil {
		return buf
	}
	_, p.err = io.ReadFull(p.rw, buf)
	return buf
}

func (p *port) write(data []byte) {
	if p.err != nil {
		return
	}
	_, p.err = p.rw.Write(data)
}

func (p *port) echo(n int) []byte {
	buf := p.read(n)
	p.write(buf)
	return buf
}

func (p *port) echo16() uint16 {
	return binary.BigEndian.Uint16(p.echo(2))
}

func (p *port) echo32() uint32 {
	return binary.BigEndian.Uint32(p.echo(4))
}

func (p *port) put16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	p.write(buf[:])
}

func (p *port) put32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	p.write(buf[:])
}

// Serve runs the protocol on rw until the host jumps to loaded code or
// closes the port. A closed port ends Serve without error.
func (b *BootROM) Serve(rw io.ReadWriter) error {
	p := &port{rw: rw}

	seq := brom.HandshakeSequence
	for i := 0; i < len(seq); {
		c := p.read(1)[0]
		if p.err != nil {
			return b.closed(p.err)
		}
		switch {
		case c == seq[i]:
			i++
		case c == seq[0]:
			i = 1
		default:
			i = 0
			p.write([]byte{c})
			continue
		}
		p.write([]byte{^c})
	}

	for {
		cmd := p.read(1)[0]
		if p.err != nil {
			return b.closed(p.err)
		}
		b.Commands = append(b.Commands, cmd)

		if cmd == brom.CmdPreloaderVer {
			p.write([]byte{brom.CmdPreloaderVer})
			continue
		}
		if cmd == brom.CmdBROMVer {
			p.write([]byte{b.Version})
			continue
		}

		p.write([]byte{cmd})

		switch cmd {
		case brom.CmdRead16, brom.CmdRead16NoStatus, brom.CmdRead32, brom.CmdRead32NoStatus:
			b.readRegs(p, cmd)

		case brom.CmdWrite16, brom.CmdWrite16NoStat, brom.CmdWrite32, brom.CmdWrite32NoStat:
			b.writeRegs(p, cmd)

		case brom.CmdGetHWCode:
			p.put16(b.soc.Profile.HWCode)
			p.put16(0)

		case brom.CmdGetHWSWVer:
			p.put16(b.HWSubCode)
			p.put16(b.HWVersion)
			p.put16(b.SWVersion)
			p.put16(0)

		case brom.CmdTargetConfig:
			p.put32(b.TargetConfig)
			p.put16(0)

		case brom.CmdGetMEID:
			p.put32(uint32(len(b.MEID)))
			p.write(b.MEID)
			p.put16(0)

		case brom.CmdUART1LogEnable, brom.CmdPowerDeinit:
			p.put16(0)

		case brom.CmdPowerInit:
			p.echo32()
			p.echo32()
			p.put16(0)

		case brom.CmdPowerRead16:
			reg := p.echo16()
			p.put16(0)
			p.put16(0)
			p.put16(b.pmic[reg])

		case brom.CmdPowerWrite16:
			reg := p.echo16()
			val := p.echo16()
			b.pmic[reg] = val
			p.put16(0)
			p.put16(0)

		case brom.CmdSendDA:
			b.sendDA(p)

		case brom.CmdJumpDA, brom.CmdJumpDANoStatus:
			addr := p.echo32()
			if cmd == brom.CmdJumpDA {
				p.put16(0)
			}
			if p.err != nil {
				return b.closed(p.err)
			}
			if b.OnJump == nil {
				return nil
			}
			return b.OnJump(addr, rw)

		default:
			return fmt.Errorf("boot ROM: unsupported command 0x%02x", cmd)
		}

		if p.err != nil {
			return b.closed(p.err)
		}
	}
}

func (b *BootROM) closed(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

func (b *BootROM) readRegs(p *port, cmd byte) {
	addr := p.echo32()
	count := p.echo32()
	check := cmd == brom.CmdRead16 || cmd == brom.CmdRead32
	wide := cmd == brom.CmdRead32 || cmd == brom.CmdRead32NoStatus

	if check {
		p.put16(0)
	}
	for i := uint32(0); i < count && p.err == nil; i++ {
		if wide {
			p.put32(b.read32(addr + 4*i))
		} else {
			p.put16(b.read16(addr + 2*i))
		}
	}
	if check {
		p.put16(0)
	}
}

func (b *BootROM) writeRegs(p *port, cmd byte) {
	addr := p.echo32()
	count := p.echo32()
	check := cmd == brom.CmdWrite16 || cmd == brom.CmdWrite32
	wide := cmd == brom.CmdWrite32 || cmd == brom.CmdWrite32NoStat

	if check {
		p.put16(b.WriteStatus)
	}
	for i := uint32(0); i < count && p.err == nil; i++ {
		if wide {
			b.write32(addr+4*i, p.echo32())
		} else {
			b.write16(addr+2*i, p.echo16())
		}
	}
	if check {
		p.put16(b.WriteStatus)
	}
}

func (b *BootROM) sendDA(p *port) {
	addr := p.echo32()
	length := p.echo32()
	p.echo32() // signature length

	if err := b.soc.Bus.Load(addr, make([]byte, length)); err != nil {
		p.put16(statusFail)
		return
	}
	p.put16(0)

	data := p.read(int(length))
	if p.err != nil {
		return
	}
	_ = b.soc.Bus.Load(addr, data)

	p.put16(brom.Checksum(data))
	p.put16(0)
}

func (b *BootROM) read32(addr uint32) uint32 {
	if b.soc.Bus.Mapped(addr) {
		return b.soc.Bus.Read32(addr)
	}
	return b.regs[addr]
}

func (b *BootROM) write32(addr, val uint32) {
	if b.soc.Bus.Mapped(addr) {
		b.soc.Bus.Write32(addr, val)
		return
	}
	b.regs[addr] = val
}

func (b *BootROM) read16(addr uint32) uint16 {
	aligned := addr &^ 3
	shift := 8 * (addr & 2)
	return uint16(b.read32(aligned) >> shift)
}

func (b *BootROM) write16(addr uint32, val uint16) {
	aligned := addr &^ 3
	shift := 8 * (addr & 2)
	w := b.read32(aligned)
	w &^= 0xFFFF << shift
	w |= uint32(val) << shift
	b.write32(aligned, w)
}
