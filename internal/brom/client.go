// Package brom is a host-side client for the boot ROM download protocol.
//
// Every command byte and argument is echoed back by the boot ROM; the
// client checks each echo before sending the next item. Multi-byte values
// are big-endian on the wire.
package brom

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/logging"
)

// Command opcodes.
const (
	CmdRead16         = 0xD0
	CmdRead16NoStatus = 0xA2
	CmdRead32         = 0xD1
	CmdRead32NoStatus = 0xAF
	CmdWrite16        = 0xD2
	CmdWrite16NoStat  = 0xA1
	CmdWrite32        = 0xD4
	CmdWrite32NoStat  = 0xAE
	CmdJumpDA         = 0xD5
	CmdJumpDANoStatus = 0xA8
	CmdSendDA         = 0xD7
	CmdTargetConfig   = 0xD8
	CmdUART1LogEnable = 0xDB
	CmdPowerInit      = 0xC4
	CmdPowerDeinit    = 0xC5
	CmdPowerRead16    = 0xC6
	CmdPowerWrite16   = 0xC7
	CmdGetMEID        = 0xE1
	CmdGetHWSWVer     = 0xFC
	CmdGetHWCode      = 0xFD
	CmdPreloaderVer   = 0xFE
	CmdBROMVer        = 0xFF
)

// HandshakeSequence is sent one byte at a time; the boot ROM answers each
// byte with its bitwise complement.
var HandshakeSequence = []byte{0xA0, 0x0A, 0x50, 0x05}

// chunkSize is the largest single write when pushing a payload.
const chunkSize = 1024

// Client speaks the boot ROM protocol over a port.
type Client struct {
	rw io.ReadWriter

	// WriteStatus is the status the boot ROM returns for a good register
	// write. Most SoCs answer 0x0000; some (mt6580) answer 0x0001.
	WriteStatus uint16

	// Progress, if set, is called while SendDA pushes data
	Progress func(sent, total int)
}

// NewClient returns a client on rw. The handshake is not performed.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw}
}

// Handshake synchronises with the boot ROM. It restarts the sequence on
// every wrong or missing answer and only gives up when ctx is done or the
// port fails.
func (c *Client) Handshake(ctx context.Context) error {
	logging.Debug("Starting BROM handshake")

	i := 0
	for i < len(HandshakeSequence) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}

		b := HandshakeSequence[i]
		if err := c.write([]byte{b}); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}

		reply, err := c.readN(1)
		var short *ShortReadError
		switch {
		case err == nil && reply[0] == ^b:
			i++
		case err == nil || errors.As(err, &short):
			i = 0
		default:
			return fmt.Errorf("handshake: %w", err)
		}
	}

	logging.Info("Handshake completed")
	return nil
}

func (c *Client) write(data []byte) error {
	if _, err := c.rw.Write(data); err != nil {
		return fmt.Errorf("write to port: %w", err)
	}
	return nil
}

func (c *Client) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(c.rw, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return buf[:got], &ShortReadError{Want: n, Got: got, Err: err}
		}
		return buf[:got], fmt.Errorf("read from port: %w", err)
	}
	return buf, nil
}

func (c *Client) echo(data []byte) error {
	if err := c.write(data); err != nil {
		return err
	}
	got, err := c.readN(len(data))
	if err != nil {
		return err
	}
	for i := range data {
		if got[i] != data[i] {
			return &EchoError{Sent: data, Got: got}
		}
	}
	return nil
}

func (c *Client) echo8(b byte) error {
	return c.echo([]byte{b})
}

func (c *Client) echo16(v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return c.echo(buf[:])
}

func (c *Client) echo32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return c.echo(buf[:])
}

func (c *Client) read16() (uint16, error) {
	buf, err := c.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (c *Client) read32() (uint32, error) {
	buf, err := c.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// status reads a status word and fails unless it equals want.
func (c *Client) status(cmd string, want uint16) error {
	s, err := c.read16()
	if err != nil {
		return fmt.Errorf("%s: status: %w", cmd, err)
	}
	if s != want {
		return &StatusError{Command: cmd, Status: s, Want: want}
	}
	return nil
}

// command sends an opcode and checks its echo.
func (c *Client) command(name string, cmd byte, args ...uint32) error {
	logging.LogBROMCommand(name, cmd, args...)
	if err := c.echo8(cmd); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *Client) readReg(name string, size int, cmd byte, addr uint32, count int, check bool) ([]uint32, error) {
	if err := c.command(name, cmd, addr, uint32(count)); err != nil {
		return nil, err
	}
	if err := c.echo32(addr); err != nil {
		return nil, fmt.Errorf("%s: address: %w", name, err)
	}
	if err := c.echo32(uint32(count)); err != nil {
		return nil, fmt.Errorf("%s: count: %w", name, err)
	}

	// read status words up to 0xff mean success
	checkStatus := func() error {
		s, err := c.read16()
		if err != nil {
			return fmt.Errorf("%s: status: %w", name, err)
		}
		if s > 0xFF {
			return &StatusError{Command: name, Status: s}
		}
		return nil
	}

	if check {
		if err := checkStatus(); err != nil {
			return nil, err
		}
	}

	out := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		var v uint32
		if size == 16 {
			w, err := c.read16()
			if err != nil {
				return nil, fmt.Errorf("%s: data: %w", name, err)
			}
			v = uint32(w)
		} else {
			w, err := c.read32()
			if err != nil {
				return nil, fmt.Errorf("%s: data: %w", name, err)
			}
			v = w
		}
		out = append(out, v)
	}

	if check {
		if err := checkStatus(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) writeReg(name string, size int, cmd byte, addr uint32, words []uint32, check bool) error {
	if err := c.command(name, cmd, append([]uint32{addr}, words...)...); err != nil {
		return err
	}
	if err := c.echo32(addr); err != nil {
		return fmt.Errorf("%s: address: %w", name, err)
	}
	if err := c.echo32(uint32(len(words))); err != nil {
		return fmt.Errorf("%s: count: %w", name, err)
	}

	if check {
		if err := c.status(name, c.WriteStatus); err != nil {
			return err
		}
	}

	for _, w := range words {
		var err error
		if size == 16 {
			err = c.echo16(uint16(w))
		} else {
			err = c.echo32(w)
		}
		if err != nil {
			return fmt.Errorf("%s: data: %w", name, err)
		}
	}

	if check {
		return c.status(name, c.WriteStatus)
	}
	return nil
}

// Read16 reads count 16-bit registers starting at addr.
func (c *Client) Read16(addr uint32, count int) ([]uint16, error) {
	return c.read16s("read16", CmdRead16, addr, count, true)
}

// Read16NoStatus is Read16 without status words, as some boot ROMs need
// for early registers.
func (c *Client) Read16NoStatus(addr uint32, count int) ([]uint16, error) {
	return c.read16s("read16", CmdRead16NoStatus, addr, count, false)
}

func (c *Client) read16s(name string, cmd byte, addr uint32, count int, check bool) ([]uint16, error) {
	vals, err := c.readReg(name, 16, cmd, addr, count, check)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, len(vals))
	for i, v := range vals {
		out[i] = uint16(v)
	}
	return out, nil
}

// Read32 reads count 32-bit registers starting at addr.
func (c *Client) Read32(addr uint32, count int) ([]uint32, error) {
	return c.readReg("read32", 32, CmdRead32, addr, count, true)
}

// Read32NoStatus is Read32 without status words.
func (c *Client) Read32NoStatus(addr uint32, count int) ([]uint32, error) {
	return c.readReg("read32", 32, CmdRead32NoStatus, addr, count, false)
}

// ReadWord16 reads one 16-bit register.
func (c *Client) ReadWord16(addr uint32) (uint16, error) {
	v, err := c.Read16(addr, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadWord32 reads one 32-bit register.
func (c *Client) ReadWord32(addr uint32) (uint32, error) {
	v, err := c.Read32(addr, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// Write16 writes consecutive 16-bit registers starting at addr.
func (c *Client) Write16(addr uint32, words ...uint16) error {
	return c.writeReg("write16", 16, CmdWrite16, addr, widen(words), true)
}

// Write16NoStatus is Write16 without status words.
func (c *Client) Write16NoStatus(addr uint32, words ...uint16) error {
	return c.writeReg("write16", 16, CmdWrite16NoStat, addr, widen(words), false)
}

// Write32 writes consecutive 32-bit registers starting at addr.
func (c *Client) Write32(addr uint32, words ...uint32) error {
	return c.writeReg("write32", 32, CmdWrite32, addr, words, true)
}

// Write32NoStatus is Write32 without status words.
func (c *Client) Write32NoStatus(addr uint32, words ...uint32) error {
	return c.writeReg("write32", 32, CmdWrite32NoStat, addr, words, false)
}

func widen(words []uint16) []uint32 {
	out := make([]uint32, len(words))
	for i, w := range words {
		out[i] = uint32(w)
	}
	return out
}

// HWCode returns the chip's hardware code. Very old boot ROMs do not
// answer the command; HWCode then returns 0 and no error.
func (c *Client) HWCode() (uint16, error) {
	if err := c.command("get_hw_code", CmdGetHWCode); err != nil {
		return 0, err
	}

	code, err := c.read16()
	var short *ShortReadError
	if errors.As(err, &short) && short.Got == 0 {
		logging.Warn("No response to get_hw_code, legacy device?")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get_hw_code: %w", err)
	}
	if err := c.status("get_hw_code", 0); err != nil {
		return 0, err
	}
	return code, nil
}

// HWSWVersion holds the answer to the version command.
type HWSWVersion struct {
	SubCode   uint16
	HWVersion uint16
	SWVersion uint16
}

// HWSWVersion returns the hardware subcode and versions.
func (c *Client) HWSWVersion() (HWSWVersion, error) {
	var v HWSWVersion
	if err := c.command("get_hw_sw_ver", CmdGetHWSWVer); err != nil {
		return v, err
	}
	for _, dst := range []*uint16{&v.SubCode, &v.HWVersion, &v.SWVersion} {
		w, err := c.read16()
		if err != nil {
			return v, fmt.Errorf("get_hw_sw_ver: %w", err)
		}
		*dst = w
	}
	return v, c.status("get_hw_sw_ver", 0)
}

// TargetConfig is the security configuration word.
type TargetConfig uint32

// SecureBoot reports bit 1.
func (t TargetConfig) SecureBoot() bool { return t&(1<<1) != 0 }

// SerialLinkAuth reports bit 2.
func (t TargetConfig) SerialLinkAuth() bool { return t&(1<<2) != 0 }

// DAAuth reports bit 3.
func (t TargetConfig) DAAuth() bool { return t&(1<<3) != 0 }

// Lines renders the config for display.
func (t TargetConfig) Lines() []string {
	yn := func(b bool) string {
		if b {
			return "YES"
		}
		return "NO"
	}
	return []string{
		fmt.Sprintf("Raw target config value: %08X", uint32(t)),
		"Secure boot: " + yn(t.SecureBoot()),
		"Serial link auth: " + yn(t.SerialLinkAuth()),
		"Download agent auth: " + yn(t.DAAuth()),
	}
}

// TargetConfig returns the security configuration.
func (c *Client) TargetConfig() (TargetConfig, error) {
	if err := c.command("get_target_config", CmdTargetConfig); err != nil {
		return 0, err
	}
	v, err := c.read32()
	if err != nil {
		return 0, fmt.Errorf("get_target_config: %w", err)
	}
	return TargetConfig(v), c.status("get_target_config", 0)
}

// Checksum is the boot ROM's payload checksum: the XOR of all
// little-endian 16-bit words, with a trailing odd byte XORed in alone.
func Checksum(data []byte) uint16 {
	var sum uint16
	i := 0
	for ; i+1 < len(data); i += 2 {
		sum ^= binary.LittleEndian.Uint16(data[i:])
	}
	if i < len(data) {
		sum ^= uint16(data[i])
	}
	return sum
}

// SendDA loads data at addr. sigLen is the length of a trailing signature
// included in data (0 for unsigned payloads). It returns the checksum the
// boot ROM computed.
func (c *Client) SendDA(addr uint32, sigLen uint32, data []byte) (uint16, error) {
	const name = "send_da"
	if err := c.command(name, CmdSendDA, addr, uint32(len(data)), sigLen); err != nil {
		return 0, err
	}
	for _, v := range []uint32{addr, uint32(len(data)), sigLen} {
		if err := c.echo32(v); err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := c.status(name, 0); err != nil {
		return 0, err
	}

	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := c.write(data[off:end]); err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		if c.Progress != nil {
			c.Progress(end, len(data))
		}
	}

	sum, err := c.read16()
	if err != nil {
		return 0, fmt.Errorf("%s: checksum: %w", name, err)
	}
	if err := c.status(name, 0); err != nil {
		return sum, err
	}

	if want := Checksum(data); sum != want {
		logging.Warn("DA checksum mismatch",
			zap.String("device", fmt.Sprintf("0x%04x", sum)),
			zap.String("host", fmt.Sprintf("0x%04x", want)),
		)
	}
	return sum, nil
}

// JumpDA starts execution at addr.
func (c *Client) JumpDA(addr uint32) error {
	if err := c.command("jump_da", CmdJumpDA, addr); err != nil {
		return err
	}
	if err := c.echo32(addr); err != nil {
		return fmt.Errorf("jump_da: %w", err)
	}
	return c.status("jump_da", 0)
}

// JumpDANoStatus is JumpDA without a status word.
func (c *Client) JumpDANoStatus(addr uint32) error {
	if err := c.command("jump_da", CmdJumpDANoStatus, addr); err != nil {
		return err
	}
	if err := c.echo32(addr); err != nil {
		return fmt.Errorf("jump_da: %w", err)
	}
	return nil
}

// UART1LogEnable makes the boot ROM log to UART1.
func (c *Client) UART1LogEnable() error {
	if err := c.command("uart1_log_enable", CmdUART1LogEnable); err != nil {
		return err
	}
	return c.status("uart1_log_enable", 0)
}

// PowerInit initialises the PMIC interface.
func (c *Client) PowerInit(reg, val uint32) error {
	if err := c.command("power_init", CmdPowerInit, reg, val); err != nil {
		return err
	}
	if err := c.echo32(reg); err != nil {
		return fmt.Errorf("power_init: %w", err)
	}
	if err := c.echo32(val); err != nil {
		return fmt.Errorf("power_init: %w", err)
	}
	return c.status("power_init", 0)
}

// PowerDeinit releases the PMIC interface.
func (c *Client) PowerDeinit() error {
	if err := c.command("power_deinit", CmdPowerDeinit); err != nil {
		return err
	}
	return c.status("power_deinit", 0)
}

// PowerRead16 reads a PMIC register.
func (c *Client) PowerRead16(reg uint16) (uint16, error) {
	if err := c.command("power_read16", CmdPowerRead16, uint32(reg)); err != nil {
		return 0, err
	}
	if err := c.echo16(reg); err != nil {
		return 0, fmt.Errorf("power_read16: %w", err)
	}
	// receive ack, then PMIC read status
	if err := c.status("power_read16", 0); err != nil {
		return 0, err
	}
	if err := c.status("power_read16", 0); err != nil {
		return 0, err
	}
	v, err := c.read16()
	if err != nil {
		return 0, fmt.Errorf("power_read16: %w", err)
	}
	return v, nil
}

// PowerWrite16 writes a PMIC register.
func (c *Client) PowerWrite16(reg, val uint16) error {
	if err := c.command("power_write16", CmdPowerWrite16, uint32(reg), uint32(val)); err != nil {
		return err
	}
	if err := c.echo16(reg); err != nil {
		return fmt.Errorf("power_write16: %w", err)
	}
	if err := c.echo16(val); err != nil {
		return fmt.Errorf("power_write16: %w", err)
	}
	if err := c.status("power_write16", 0); err != nil {
		return err
	}
	return c.status("power_write16", 0)
}

// MEID returns the chip's ME ID.
func (c *Client) MEID() ([]byte, error) {
	if err := c.command("get_me_id", CmdGetMEID); err != nil {
		return nil, err
	}
	n, err := c.read32()
	if err != nil {
		return nil, fmt.Errorf("get_me_id: %w", err)
	}
	if n == 0 || n > 0x100 {
		return nil, fmt.Errorf("get_me_id: bad ME ID length %d", n)
	}
	id, err := c.readN(int(n))
	if err != nil {
		return nil, fmt.Errorf("get_me_id: %w", err)
	}
	return id, c.status("get_me_id", 0)
}

// PreloaderVersion asks for the preloader version. The opcode is not
// echoed. The boot ROM answers 0xFE, meaning there is no preloader.
func (c *Client) PreloaderVersion() (byte, error) {
	return c.version("get_preloader_version", CmdPreloaderVer, "Cannot get preloader version in BROM mode")
}

// BROMVersion asks for the boot ROM version. A preloader answers 0xFF.
func (c *Client) BROMVersion() (byte, error) {
	return c.version("get_brom_version", CmdBROMVer, "Cannot get BROM version in preloader mode")
}

func (c *Client) version(name string, cmd byte, unavailable string) (byte, error) {
	logging.LogBROMCommand(name, cmd)
	if err := c.write([]byte{cmd}); err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	v, err := c.readN(1)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if v[0] == cmd {
		logging.Warn(unavailable)
	}
	return v[0], nil
}

// SetPowerReg writes a PMIC register and reads it back. ref is the value
// the register is expected to hold before the write; differences are
// logged, not returned.
func (c *Client) SetPowerReg(reg, val, ref uint16) error {
	cur, err := c.PowerRead16(reg)
	if err != nil {
		return err
	}
	if cur != ref {
		logging.Warn("PMIC register differs from reference",
			zap.String("reg", fmt.Sprintf("0x%04x", reg)),
			zap.String("value", fmt.Sprintf("0x%04x", cur)),
			zap.String("reference", fmt.Sprintf("0x%04x", ref)),
		)
	}

	if err := c.PowerWrite16(reg, val); err != nil {
		return err
	}

	got, err := c.PowerRead16(reg)
	if err != nil {
		return err
	}
	if got != val {
		logging.Error("Could not set PMIC register",
			zap.String("reg", fmt.Sprintf("0x%04x", reg)),
			zap.String("want", fmt.Sprintf("0x%04x", val)),
			zap.String("got", fmt.Sprintf("0x%04x", got)),
		)
	}
	return nil
}

// Write16Verify reads a 16-bit register, writes val and reads it back.
// Mismatches against ref and val are logged, not returned.
func (c *Client) Write16Verify(addr uint32, val, ref uint16) error {
	old, err := c.ReadWord16(addr)
	if err != nil {
		return err
	}
	if old != ref {
		logging.Warn("Register differs from reference",
			logging.Hex32("addr", addr),
			zap.String("value", fmt.Sprintf("0x%04x", old)),
			zap.String("reference", fmt.Sprintf("0x%04x", ref)),
		)
	}

	if err := c.Write16(addr, val); err != nil {
		return err
	}

	check, err := c.ReadWord16(addr)
	if err != nil {
		return err
	}
	if check != val {
		logging.Warn("Register write did not stick",
			logging.Hex32("addr", addr),
			zap.String("want", fmt.Sprintf("0x%04x", val)),
			zap.String("got", fmt.Sprintf("0x%04x", check)),
		)
	}
	return nil
}

// ReadRaw reads n raw bytes without issuing a command.
func (c *Client) ReadRaw(n int) ([]byte, error) {
	return c.readN(n)
}

// WriteRaw writes raw bytes without issuing a command.
func (c *Client) WriteRaw(data []byte) error {
	return c.write(data)
}

// Port returns the underlying port, for use after the payload started.
func (c *Client) Port() io.ReadWriter {
	return c.rw
}
