package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"chatty", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("default logger should be silent")
	}
}

func TestLogBROMCommand(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogBROMCommand("read32", 0xd1, 0x10007000, 1)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["opcode"] != "0xd1" || fields["arg0"] != "0x10007000" || fields["arg1"] != "0x00000001" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLogTransfer(t *testing.T) {
	tests := []struct {
		name      string
		level     zapcore.Level
		data      []byte
		wantLogs  int
		wantHex   string
		wantASCII string
	}{
		{"handshake byte", zapcore.DebugLevel, []byte{0xa0, 0x0a}, 1, "a00a", ".."},
		{"uart text", zapcore.DebugLevel, []byte("done :)\r\n"), 1, "646f6e65203a290d0a", "done :).."},
		{"silent above debug", zapcore.InfoLevel, []byte{0x5f}, 0, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(tt.level)
			SetLogger(zap.New(core))
			defer SetLogger(nil)

			LogTransfer("rx", tt.data)

			entries := logs.All()
			if len(entries) != tt.wantLogs {
				t.Fatalf("got %d entries, want %d", len(entries), tt.wantLogs)
			}
			if tt.wantLogs == 0 {
				return
			}
			fields := entries[0].ContextMap()
			if fields["hex"] != tt.wantHex || fields["ascii"] != tt.wantASCII || fields["direction"] != "rx" {
				t.Errorf("fields = %v", fields)
			}
		})
	}
}

func TestLogTransfer_Truncates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogTransfer("tx", make([]byte, 300))

	fields := logs.All()[0].ContextMap()
	if got := fields["hex"].(string); !strings.HasSuffix(got, "...") || len(got) != 2*maxTraffic+3 {
		t.Errorf("hex length = %d", len(got))
	}
	if fields["length"] != int64(300) {
		t.Errorf("length = %v", fields["length"])
	}
}
