package brom_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/muurk/bromdump/internal/brom"
	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/sim"
)

// scripted answers reads from a canned reply stream and records writes.
type scripted struct {
	replies *bytes.Reader
	sent    bytes.Buffer
}

func newScripted(replies ...[]byte) *scripted {
	return &scripted{replies: bytes.NewReader(bytes.Join(replies, nil))}
}

func (s *scripted) Read(p []byte) (int, error)  { return s.replies.Read(p) }
func (s *scripted) Write(p []byte) (int, error) { return s.sent.Write(p) }

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func be16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func TestHandshake_RestartsOnBadReply(t *testing.T) {
	port := newScripted([]byte{0x00, 0x5F, 0xF5, 0xAF, 0xFA})
	c := brom.NewClient(port)

	if err := c.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	want := []byte{0xA0, 0xA0, 0x0A, 0x50, 0x05}
	if !bytes.Equal(port.sent.Bytes(), want) {
		t.Errorf("sent % X, want % X", port.sent.Bytes(), want)
	}
}

func TestHandshake_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := brom.NewClient(newScripted()).Handshake(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRead32(t *testing.T) {
	port := newScripted(
		[]byte{brom.CmdRead32}, be32(0x10007000), be32(2),
		be16(0), be32(0x22000000), be32(0xDEADBEEF), be16(0),
	)
	c := brom.NewClient(port)

	got, err := c.Read32(0x10007000, 2)
	if err != nil {
		t.Fatalf("Read32: %v", err)
	}
	if len(got) != 2 || got[0] != 0x22000000 || got[1] != 0xDEADBEEF {
		t.Errorf("Read32 = %#x", got)
	}

	want := bytes.Join([][]byte{{brom.CmdRead32}, be32(0x10007000), be32(2)}, nil)
	if !bytes.Equal(port.sent.Bytes(), want) {
		t.Errorf("sent % X, want % X", port.sent.Bytes(), want)
	}
}

func TestRead16NoStatus(t *testing.T) {
	port := newScripted([]byte{brom.CmdRead16NoStatus}, be32(0x70026000), be32(1), be16(0x8A00))
	got, err := brom.NewClient(port).Read16NoStatus(0x70026000, 1)
	if err != nil {
		t.Fatalf("Read16NoStatus: %v", err)
	}
	if got[0] != 0x8A00 {
		t.Errorf("value = 0x%04x", got[0])
	}
}

func TestRead16_StatusError(t *testing.T) {
	port := newScripted([]byte{brom.CmdRead16}, be32(0x1000), be32(1), be16(0x1D0C))
	_, err := brom.NewClient(port).Read16(0x1000, 1)

	var se *brom.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != 0x1D0C || se.Command != "read16" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestRead16_SmallStatusIsSuccess(t *testing.T) {
	port := newScripted([]byte{brom.CmdRead16}, be32(0x1000), be32(1), be16(0x0001), be16(0x1234), be16(0x0001))
	got, err := brom.NewClient(port).Read16(0x1000, 1)
	if err != nil {
		t.Fatalf("Read16: %v", err)
	}
	if got[0] != 0x1234 {
		t.Errorf("value = 0x%04x", got[0])
	}
}

func TestWrite32_WriteStatus(t *testing.T) {
	port := newScripted([]byte{brom.CmdWrite32}, be32(0x10000000), be32(1), be16(1), be32(0x22002224), be16(1))
	c := brom.NewClient(port)

	if err := c.Write32(0x10000000, 0x22002224); err == nil {
		t.Fatal("expected StatusError with WriteStatus 0")
	}

	port = newScripted([]byte{brom.CmdWrite32}, be32(0x10000000), be32(1), be16(1), be32(0x22002224), be16(1))
	c = brom.NewClient(port)
	c.WriteStatus = 1
	if err := c.Write32(0x10000000, 0x22002224); err != nil {
		t.Fatalf("Write32: %v", err)
	}
}

func TestEchoError(t *testing.T) {
	port := newScripted([]byte{brom.CmdRead32}, be32(0x10007001))
	_, err := brom.NewClient(port).Read32(0x10007000, 1)

	var ee *brom.EchoError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *EchoError", err)
	}
	if !bytes.Equal(ee.Sent, be32(0x10007000)) {
		t.Errorf("EchoError.Sent = % X", ee.Sent)
	}
}

func TestHWCode_Legacy(t *testing.T) {
	port := newScripted([]byte{brom.CmdGetHWCode})
	code, err := brom.NewClient(port).HWCode()
	if err != nil {
		t.Fatalf("HWCode: %v", err)
	}
	if code != 0 {
		t.Errorf("HWCode = 0x%04x, want 0 for a silent boot ROM", code)
	}
}

func TestShortRead(t *testing.T) {
	port := newScripted([]byte{brom.CmdTargetConfig}, []byte{0x00, 0x00})
	_, err := brom.NewClient(port).TargetConfig()

	var sr *brom.ShortReadError
	if !errors.As(err, &sr) || sr.Want != 4 || sr.Got != 2 {
		t.Errorf("error = %v, want ShortReadError 2/4", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("ShortReadError should unwrap to io.ErrUnexpectedEOF")
	}
}

func TestTargetConfig_Lines(t *testing.T) {
	tc := brom.TargetConfig(0x6)
	if !tc.SecureBoot() || !tc.SerialLinkAuth() || tc.DAAuth() {
		t.Errorf("flags of 0x6 decoded wrong")
	}
	lines := tc.Lines()
	want := []string{
		"Raw target config value: 00000006",
		"Secure boot: YES",
		"Serial link auth: YES",
		"Download agent auth: NO",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		data []byte
		want uint16
	}{
		{nil, 0},
		{[]byte{0x34, 0x12}, 0x1234},
		{[]byte{0x34, 0x12, 0x34, 0x12}, 0},
		{[]byte{0x01, 0x00, 0x02, 0x00, 0x07}, 0x0004},
	}
	for _, tt := range tests {
		if got := brom.Checksum(tt.data); got != tt.want {
			t.Errorf("Checksum(% x) = 0x%04x, want 0x%04x", tt.data, got, tt.want)
		}
	}
}

func TestVersions(t *testing.T) {
	port := newScripted([]byte{0xFE}, []byte{0x05})
	c := brom.NewClient(port)

	pl, err := c.PreloaderVersion()
	if err != nil || pl != 0xFE {
		t.Errorf("PreloaderVersion = 0x%02x, %v", pl, err)
	}
	bv, err := c.BROMVersion()
	if err != nil || bv != 0x05 {
		t.Errorf("BROMVersion = 0x%02x, %v", bv, err)
	}
	// neither command is echoed
	if !bytes.Equal(port.sent.Bytes(), []byte{0xFE, 0xFF}) {
		t.Errorf("sent % X", port.sent.Bytes())
	}
}

type session struct {
	soc    *sim.SoC
	rom    *sim.BootROM
	client *brom.Client
	done   chan error
	host   net.Conn
}

func startSession(t *testing.T, chipName string) *session {
	t.Helper()
	db, err := chip.Load()
	if err != nil {
		t.Fatalf("chip.Load: %v", err)
	}
	p, err := db.Lookup(chipName)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	soc, err := sim.New(p, sim.Options{})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	host, dev := net.Pipe()
	s := &session{
		soc:    soc,
		rom:    sim.NewBootROM(soc),
		client: brom.NewClient(host),
		done:   make(chan error, 1),
		host:   host,
	}
	go func() {
		s.done <- s.rom.Serve(dev)
		dev.Close()
	}()
	t.Cleanup(func() { host.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Handshake(ctx); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	return s
}

func (s *session) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("boot ROM did not stop")
		return nil
	}
}

func TestSession_Identify(t *testing.T) {
	s := startSession(t, "mt6577")
	c := s.client

	code, err := c.HWCode()
	if err != nil || code != 0x6577 {
		t.Fatalf("HWCode = 0x%04x, %v", code, err)
	}
	ver, err := c.HWSWVersion()
	if err != nil || ver.SubCode != s.rom.HWSubCode || ver.HWVersion != s.rom.HWVersion {
		t.Errorf("HWSWVersion = %+v, %v", ver, err)
	}
	id, err := c.ReadWord32(s.soc.Profile.ChipIDRegister)
	if err != nil || id != 0x6577 {
		t.Errorf("chip id register = 0x%x, %v", id, err)
	}
	meid, err := c.MEID()
	if err != nil || !bytes.Equal(meid, s.rom.MEID) {
		t.Errorf("MEID = % X, %v", meid, err)
	}
	tc, err := c.TargetConfig()
	if err != nil || tc != 0 {
		t.Errorf("TargetConfig = %v, %v", tc, err)
	}
	if v, err := c.PreloaderVersion(); err != nil || v != 0xFE {
		t.Errorf("PreloaderVersion = 0x%02x, %v", v, err)
	}

	s.host.Close()
	if err := s.wait(t); err != nil {
		t.Errorf("Serve: %v", err)
	}
}

func TestSession_Registers(t *testing.T) {
	s := startSession(t, "mt6573")
	c := s.client

	// unmapped peripheral register reads back the written value
	if err := c.Write16Verify(0x7002FA0C, 0x2079, 0x3079); err != nil {
		t.Fatalf("Write16Verify: %v", err)
	}
	if got := s.rom.Register(0x7002FA0C); got != 0x2079 {
		t.Errorf("register word = 0x%08x, want 0x00002079", got)
	}
	if err := c.Write16(0x7002FA0E, 0xBEEF); err != nil {
		t.Fatalf("Write16: %v", err)
	}
	if got := s.rom.Register(0x7002FA0C); got != 0xBEEF2079 {
		t.Errorf("register word = 0x%08x, want 0xbeef2079", got)
	}

	// RAM-backed addresses go to the bus, little-endian
	if err := c.Write32(0x40000000, 0x11223344); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	if got := s.soc.Bus.ReadBytes(0x40000000, 4); !bytes.Equal(got, []byte{0x44, 0x33, 0x22, 0x11}) {
		t.Errorf("sram = % x", got)
	}
	v, err := c.Read16(0x40000000, 2)
	if err != nil || v[0] != 0x3344 || v[1] != 0x1122 {
		t.Errorf("Read16 = %#x, %v", v, err)
	}

	if err := c.PowerInit(0x80000000, 0); err != nil {
		t.Fatalf("PowerInit: %v", err)
	}
	if err := c.SetPowerReg(0x000E, 0x1001, 0x1001); err != nil {
		t.Fatalf("SetPowerReg: %v", err)
	}
	if got := s.rom.PMIC(0x000E); got != 0x1001 {
		t.Errorf("PMIC 0x0e = 0x%04x", got)
	}
	if err := c.PowerDeinit(); err != nil {
		t.Fatalf("PowerDeinit: %v", err)
	}
}

func TestSession_SendAndJump(t *testing.T) {
	s := startSession(t, "mt6577")
	c := s.client

	jumped := make(chan uint32, 1)
	s.rom.OnJump = func(addr uint32, port io.ReadWriter) error {
		jumped <- addr
		return nil
	}

	payload := bytes.Repeat([]byte{0xEA, 0xFF, 0xFF, 0xFE}, 700)
	var calls, last int
	c.Progress = func(sent, total int) {
		calls++
		last = sent
		if total != len(payload) {
			t.Errorf("progress total = %d", total)
		}
	}

	addr := s.soc.Profile.BROM.PayloadAddress
	sum, err := c.SendDA(addr, 0, payload)
	if err != nil {
		t.Fatalf("SendDA: %v", err)
	}
	if sum != brom.Checksum(payload) {
		t.Errorf("checksum = 0x%04x, want 0x%04x", sum, brom.Checksum(payload))
	}
	if calls != 3 || last != len(payload) {
		t.Errorf("progress calls = %d, last = %d", calls, last)
	}
	if got := s.soc.Bus.ReadBytes(addr, uint32(len(payload))); !bytes.Equal(got, payload) {
		t.Error("payload not loaded at the payload address")
	}

	if err := c.UART1LogEnable(); err != nil {
		t.Fatalf("UART1LogEnable: %v", err)
	}
	if err := c.JumpDA(addr); err != nil {
		t.Fatalf("JumpDA: %v", err)
	}
	if err := s.wait(t); err != nil {
		t.Errorf("Serve: %v", err)
	}
	if got := <-jumped; got != addr {
		t.Errorf("jumped to 0x%08x, want 0x%08x", got, addr)
	}
}

func TestSession_SendOutsideRAM(t *testing.T) {
	s := startSession(t, "mt6577")

	_, err := s.client.SendDA(0x00001000, 0, []byte{1, 2, 3, 4})
	var se *brom.StatusError
	if !errors.As(err, &se) || se.Command != "send_da" {
		t.Errorf("error = %v, want send_da StatusError", err)
	}
}
