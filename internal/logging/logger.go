package logging

import (
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar selects a level when --log-level is not given. Unset
// means silent.
const LogLevelEnvVar = "BROMDUMP_LOG_LEVEL"

// maxTraffic caps how much of one port transfer is rendered.
const maxTraffic = 256

// Initialize installs the global logger at level, falling back to
// BROMDUMP_LOG_LEVEL. With neither set the logger discards everything.
// Output goes to stderr; stdout carries the UI and greedy dumps.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(level)),
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// SetLogger replaces the global logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger, silent if none was installed.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Sync flushes buffered entries.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// Hex32 is a zap field rendering an address or register value as 0x%08x.
func Hex32(key string, v uint32) zap.Field {
	return zap.String(key, fmt.Sprintf("0x%08x", v))
}

// LogBROMCommand logs a boot ROM opcode and its word arguments.
func LogBROMCommand(name string, cmd byte, args ...uint32) {
	fields := []zap.Field{
		zap.String("command", name),
		zap.String("opcode", fmt.Sprintf("0x%02x", cmd)),
	}
	for i, a := range args {
		fields = append(fields, Hex32(fmt.Sprintf("arg%d", i), a))
	}
	Debug("BROM command", fields...)
}

// LogTransfer logs bytes moved over the port; direction is "tx" or "rx".
// UART payloads talk text on the same port, so the printable rendering
// is logged next to the hex.
func LogTransfer(direction string, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	shown, more := data, ""
	if len(shown) > maxTraffic {
		shown, more = shown[:maxTraffic], "..."
	}
	Debug("Port transfer",
		zap.String("direction", direction),
		zap.Int("length", len(data)),
		zap.String("hex", hex.EncodeToString(shown)+more),
		zap.String("ascii", printable(shown)+more),
	)
}

// LogRegion logs one memory region of a dump.
func LogRegion(event string, name string, base, length uint32) {
	Info("Dump region",
		zap.String("event", event),
		zap.String("region", name),
		Hex32("base", base),
		zap.Uint32("length", length),
	)
}

func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7e {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}
