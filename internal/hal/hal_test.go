package hal_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/hal"
	"github.com/muurk/bromdump/internal/sim"
)

func lookup(t *testing.T, name string) *chip.Profile {
	t.Helper()
	db, err := chip.Load()
	if err != nil {
		t.Fatalf("chip.Load: %v", err)
	}
	p, err := db.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", name, err)
	}
	return p
}

type machine struct {
	soc     *sim.SoC
	console *bytes.Buffer
	usbOut  *bytes.Buffer
	t       hal.Transport
}

func bind(t *testing.T, chipName string, mode hal.Mode, usbIn []byte) *machine {
	t.Helper()
	p := lookup(t, chipName)

	m := &machine{
		console: &bytes.Buffer{},
		usbOut:  &bytes.Buffer{},
	}
	soc, err := sim.New(p, sim.Options{
		Console:   m.console,
		USBIn:     bytes.NewReader(usbIn),
		USBOut:    m.usbOut,
		BusyPolls: 3,
	})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	m.soc = soc

	tr, err := hal.New(hal.Config{
		Mode:    mode,
		Profile: p,
		Bus:     soc.Bus,
		Caller:  soc.Agent,
	})
	if err != nil {
		t.Fatalf("hal.New(%v): %v", mode, err)
	}
	m.t = tr
	return m
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    hal.Mode
		wantErr bool
	}{
		{"standalone", hal.ModeStandalone, false},
		{"Piggyback", hal.ModePiggyback, false},
		{"jtag", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := hal.ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, hal.ErrUnknownMode) {
			t.Errorf("ParseMode(%q) error should wrap ErrUnknownMode", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if hal.ModePiggyback.String() != "piggyback" {
		t.Errorf("ModePiggyback.String() = %q", hal.ModePiggyback.String())
	}
}

func TestPutByte_CRLF(t *testing.T) {
	input := []byte("one\ntwo\n\nthree\r\n")
	want := []byte("one\r\ntwo\r\n\r\nthree\r\r\n")

	for _, mode := range []hal.Mode{hal.ModeStandalone, hal.ModePiggyback} {
		t.Run(mode.String(), func(t *testing.T) {
			m := bind(t, "mt6577", mode, nil)
			for _, b := range input {
				m.t.PutByte(b)
			}
			if got := m.console.Bytes(); !bytes.Equal(got, want) {
				t.Errorf("wire = %q, want %q", got, want)
			}
		})
	}
}

func TestPutByte_EveryLFPrecededByCR(t *testing.T) {
	m := bind(t, "mt6580", hal.ModeStandalone, nil)

	var input []byte
	for i := 0; i < 256; i++ {
		input = append(input, byte(i), '\n', byte(255-i))
	}
	for _, b := range input {
		m.t.PutByte(b)
	}

	wire := m.console.Bytes()
	lfIn := bytes.Count(input, []byte{'\n'})
	if len(wire) != len(input)+lfIn {
		t.Fatalf("wire has %d bytes, want %d", len(wire), len(input)+lfIn)
	}
	for i, b := range wire {
		if b == '\n' && (i == 0 || wire[i-1] != '\r') {
			t.Fatalf("LF at %d not preceded by CR", i)
		}
	}
}

func TestStandalone_PollsLineStatus(t *testing.T) {
	m := bind(t, "mt6252", hal.ModeStandalone, nil)
	uart := m.soc.UARTs[0]

	m.t.PutByte('a')
	m.t.PutByte('b')

	if uart.Transmitted != 2 {
		t.Fatalf("Transmitted = %d, want 2", uart.Transmitted)
	}
	// first byte: one poll; second byte: three busy polls then ready
	if uart.Polls != 5 {
		t.Errorf("Polls = %d, want 5", uart.Polls)
	}
}

// lsrScript answers LSR reads from a fixed sequence and records THR writes.
type lsrScript struct {
	hw    hal.HardwareHandle
	lsr   []uint32
	polls int
	thr   []byte
}

func (b *lsrScript) Read32(addr uint32) uint32 {
	if addr != b.hw.LSR {
		return 0
	}
	v := b.lsr[len(b.lsr)-1]
	if b.polls < len(b.lsr) {
		v = b.lsr[b.polls]
	}
	b.polls++
	return v
}

func (b *lsrScript) Write32(addr, val uint32) {
	if addr == b.hw.THR {
		b.thr = append(b.thr, byte(val))
	}
}

func (b *lsrScript) Read8(addr uint32) uint8 { return 0 }

func TestStandalone_LineStatusBits(t *testing.T) {
	const base = 0x81030000
	tests := []struct {
		name      string
		lsr       []uint32
		wantPolls int
	}{
		{"ready at once", []uint32{1 << hal.LSR_THRE}, 1},
		{"data ready is not THRE", []uint32{1 << hal.LSR_DR, 1 << hal.LSR_THRE}, 2},
		{"every other bit set", []uint32{^uint32(1 << hal.LSR_THRE), 0xFFFFFFFF}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &lsrScript{hw: hal.NewHardwareHandle(base), lsr: tt.lsr}
			hal.NewStandalone(bus, base).PutByte('A')

			if bus.polls != tt.wantPolls {
				t.Errorf("polls = %d, want %d", bus.polls, tt.wantPolls)
			}
			if string(bus.thr) != "A" {
				t.Errorf("THR writes = % x", bus.thr)
			}
		})
	}
}

func TestStandalone_HardwareHandle(t *testing.T) {
	hw := hal.NewHardwareHandle(0x81030000)
	if hw.THR != 0x81030000 || hw.RBR != 0x81030000 || hw.LSR != 0x81030014 {
		t.Errorf("handle = %+v", hw)
	}
}

func TestStandalone_Words(t *testing.T) {
	m := bind(t, "mt6252", hal.ModeStandalone, nil)
	uart := m.soc.UARTs[0]

	m.t.WriteWord(0x0A0D0A0D)
	if got := m.console.Bytes(); !bytes.Equal(got, []byte{0x0A, 0x0D, 0x0A, 0x0D}) {
		t.Errorf("WriteWord wire = % x (no CRLF translation expected)", got)
	}

	uart.Feed([]byte{0x3E, 0x4D, 0x74, 0x6B})
	if got := m.t.ReadWord(); got != 0x3E4D746B {
		t.Errorf("ReadWord = 0x%08x, want 0x3e4d746b", got)
	}
}

func TestStandalone_NoUART(t *testing.T) {
	p := lookup(t, "mt6573")
	soc, err := sim.New(p, sim.Options{})
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	_, err = hal.New(hal.Config{Mode: hal.ModeStandalone, Profile: p, Bus: soc.Bus})
	if !errors.Is(err, hal.ErrNoUART) {
		t.Errorf("error = %v, want ErrNoUART", err)
	}
	var uerr *chip.UARTUnavailableError
	if !errors.As(err, &uerr) {
		t.Errorf("error should carry *chip.UARTUnavailableError, got %T", err)
	}
}

func TestPiggyback_Words(t *testing.T) {
	m := bind(t, "mt6589", hal.ModePiggyback, []byte{0x4D, 0x74, 0x6B, 0x3C})

	m.t.WriteWord(0x3E4D746B)
	if got := m.usbOut.Bytes(); !bytes.Equal(got, []byte{0x3E, 0x4D, 0x74, 0x6B}) {
		t.Errorf("WriteWord wire = % x", got)
	}
	if got := m.t.ReadWord(); got != 0x4D746B3C {
		t.Errorf("ReadWord = 0x%08x, want 0x4d746b3c", got)
	}
}

func TestPiggyback_SingleByteWrites(t *testing.T) {
	m := bind(t, "mt6252", hal.ModePiggyback, nil)
	p := m.soc.Profile

	sram, _ := p.Region("sram")
	m.t.WriteBytes(sram.Base, 10)

	if got := m.soc.Agent.Calls[p.Agent.USBWrite]; got != 10 {
		t.Errorf("usb_write calls = %d, want 10", got)
	}
	if m.soc.Agent.MaxBlock != 1 {
		t.Errorf("MaxBlock = %d, want 1", m.soc.Agent.MaxBlock)
	}
	if want := m.soc.Bus.ReadBytes(sram.Base, 10); !bytes.Equal(m.usbOut.Bytes(), want) {
		t.Errorf("usb out = % x, want % x", m.usbOut.Bytes(), want)
	}
}

func TestPiggyback_BlockWrite(t *testing.T) {
	m := bind(t, "mt6577", hal.ModePiggyback, nil)
	p := m.soc.Profile

	m.t.WriteBytes(0xC2000000, 0x100)
	if got := m.soc.Agent.Calls[p.Agent.USBWrite]; got != 1 {
		t.Errorf("usb_write calls = %d, want 1", got)
	}
	if m.usbOut.Len() != 0x100 {
		t.Errorf("usb out = %d bytes, want 256", m.usbOut.Len())
	}
}

func TestPiggyback_InitCalledOnBind(t *testing.T) {
	m := bind(t, "mt6573", hal.ModePiggyback, nil)
	if !m.soc.Agent.Initialized {
		t.Error("agent init routine was not called")
	}
	if got := m.soc.Agent.Calls[m.soc.Profile.Agent.Init]; got != 1 {
		t.Errorf("init calls = %d, want 1", got)
	}
}

type nopCaller struct{}

func (nopCaller) Call(uint32, ...uint32) uint32 { return 0 }

func TestNewPiggyback_Validation(t *testing.T) {
	good := chip.EntryPoints{
		UARTPutc:  0x101,
		USBWrite:  0x201,
		USBReadl:  0x301,
		USBWritel: 0x401,
	}

	tests := []struct {
		name   string
		mutate func(*chip.EntryPoints)
		want   string
	}{
		{"valid", func(*chip.EntryPoints) {}, ""},
		{"missing putc", func(ep *chip.EntryPoints) { ep.UARTPutc = 0 }, "uart_putc"},
		{"even usb_write", func(ep *chip.EntryPoints) { ep.USBWrite = 0x200 }, "usb_write"},
		{"even init", func(ep *chip.EntryPoints) { ep.Init = 0x500 }, "init"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := good
			tt.mutate(&ep)

			_, err := hal.NewPiggyback(sim.NewBus(), nopCaller{}, ep)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var epErr *hal.EntryPointError
			if !errors.As(err, &epErr) {
				t.Fatalf("error = %v, want *EntryPointError", err)
			}
			if epErr.Name != tt.want {
				t.Errorf("EntryPointError.Name = %q, want %q", epErr.Name, tt.want)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	p := lookup(t, "mt6577")
	bus := sim.NewBus()

	if _, err := hal.New(hal.Config{Mode: hal.ModePiggyback, Profile: p}); !errors.Is(err, hal.ErrNoBus) {
		t.Errorf("no bus: error = %v", err)
	}
	if _, err := hal.New(hal.Config{Mode: hal.ModePiggyback, Profile: p, Bus: bus}); !errors.Is(err, hal.ErrNoCaller) {
		t.Errorf("no caller: error = %v", err)
	}
	if _, err := hal.New(hal.Config{Mode: 9, Profile: p, Bus: bus}); !errors.Is(err, hal.ErrUnknownMode) {
		t.Errorf("bad mode: error = %v", err)
	}
	if _, err := hal.New(hal.Config{Mode: hal.ModeStandalone, Profile: p, Bus: bus, UART: 7}); !errors.Is(err, hal.ErrNoUART) {
		t.Errorf("bad uart: error = %v", err)
	}
}

func TestIdle_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hal.Idle(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Idle returned before cancel")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Idle did not return after cancel")
	}
}
