package serialport

import (
	"bytes"
	"testing"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

func TestOptions(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantBaud    uint
		wantMinRead uint
		wantTimeout uint
	}{
		{"defaults", Config{Port: "/dev/ttyACM0"}, DefaultBaud, 1, 0},
		{"custom baud", Config{Port: "/dev/ttyUSB0", Baud: 921600}, 921600, 1, 0},
		{"timeout", Config{Port: "/dev/ttyACM0", Timeout: 200 * time.Millisecond}, DefaultBaud, 0, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oo := Options(tt.cfg)
			if oo.PortName != tt.cfg.Port {
				t.Errorf("PortName = %q", oo.PortName)
			}
			if oo.BaudRate != tt.wantBaud {
				t.Errorf("BaudRate = %d, want %d", oo.BaudRate, tt.wantBaud)
			}
			if oo.MinimumReadSize != tt.wantMinRead {
				t.Errorf("MinimumReadSize = %d, want %d", oo.MinimumReadSize, tt.wantMinRead)
			}
			if oo.InterCharacterTimeout != tt.wantTimeout {
				t.Errorf("InterCharacterTimeout = %d, want %d", oo.InterCharacterTimeout, tt.wantTimeout)
			}
			if oo.DataBits != 8 || oo.StopBits != 1 || oo.ParityMode != serial.PARITY_NONE {
				t.Errorf("framing = %d%v%d, want 8N1", oo.DataBits, oo.ParityMode, oo.StopBits)
			}
		})
	}
}

func TestOpen_NoPort(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("expected error without a port name")
	}
}

type rw struct {
	bytes.Buffer
}

func TestTrace_PassesThrough(t *testing.T) {
	var under rw
	under.WriteString("abc")

	tr := Trace(&under)
	buf := make([]byte, 2)
	if n, err := tr.Read(buf); n != 2 || err != nil || string(buf) != "ab" {
		t.Errorf("Read = %d, %v, %q", n, err, buf)
	}
	if _, err := tr.Write([]byte{0xa0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := under.Bytes(); !bytes.Equal(got, []byte{'c', 0xa0}) {
		t.Errorf("underlying = % x", got)
	}
}
