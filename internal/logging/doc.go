// Package logging provides structured logging for bromdump.
//
// This package wraps a global zap logger with convenience functions. It is
// silent unless a level is requested with --log-level or the
// BROMDUMP_LOG_LEVEL environment variable.
//
// # Log Levels
//
//   - Debug: BROM opcodes, raw port traffic, transport binding
//   - Info: region progress, replay steps
//   - Warn: recoverable oddities (short reads, unexpected status)
//   - Error: failures that abort a command
//
// # Specialized Logging
//
//	logging.LogBROMCommand("read32", 0xd1, addr, count)
//	logging.LogTransfer("rx", buf)
//	logging.LogRegion("binary", "brom", 0x48000000, 0x8000)
//
// # Configuration
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
package logging
