package brom

import (
	"fmt"
)

// StatusError is returned when the boot ROM answers a command with a
// failure status.
type StatusError struct {
	Command string
	Status  uint16
	// Want is the status the command expects
	Want uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: boot ROM returned status 0x%04x (want 0x%04x)\n"+
		"\n"+
		"Check the target config with: bromdump identify\n"+
		"Secure boot or DA authentication make the boot ROM reject unsigned payloads.",
		e.Command, e.Status, e.Want)
}

// EchoError is returned when the boot ROM does not echo a command or
// argument back unchanged.
type EchoError struct {
	Sent []byte
	Got  []byte
}

func (e *EchoError) Error() string {
	return fmt.Sprintf("unexpected echo: sent % X, got % X\n"+
		"\n"+
		"The device may have left BROM mode or the handshake was lost.\n"+
		"Reconnect the device while holding the download key and retry.",
		e.Sent, e.Got)
}

// ShortReadError is returned when the port delivers fewer bytes than a
// reply needs, usually because the read timed out.
type ShortReadError struct {
	Want int
	Got  int
	Err  error
}

func (e *ShortReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("short read: got %d of %d bytes: %v", e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("short read: got %d of %d bytes", e.Got, e.Want)
}

func (e *ShortReadError) Unwrap() error {
	return e.Err
}
