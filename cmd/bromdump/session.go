package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/brom"
	"github.com/muurk/bromdump/internal/chip"
	"github.com/muurk/bromdump/internal/dump"
	"github.com/muurk/bromdump/internal/logging"
	"github.com/muurk/bromdump/internal/payload"
	"github.com/muurk/bromdump/internal/receiver"
	"github.com/muurk/bromdump/internal/replay"
	"github.com/muurk/bromdump/internal/serialport"
	"github.com/muurk/bromdump/internal/ui"
)

// openPort opens the configured serial port. The port is closed when ctx
// ends so that blocked reads return.
func openPort(ctx context.Context) (io.ReadWriteCloser, error) {
	port, err := serialport.Open(serialport.Config{
		Port:  portName,
		Baud:  baudRate,
		Trace: logging.GetLogger().Core().Enabled(zap.DebugLevel),
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		port.Close()
	}()
	return port, nil
}

// connect opens the port and completes the boot ROM handshake.
func connect(ctx context.Context, p *ui.Printer) (io.ReadWriteCloser, *brom.Client, error) {
	port, err := openPort(ctx)
	if err != nil {
		return nil, nil, err
	}

	p.PrintPleaseWait("Plug in the powered-off phone", "waiting for the boot ROM on "+portName)
	c := brom.NewClient(port)
	if err := c.Handshake(ctx); err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("handshake failed: %w", err)
	}
	return port, c, nil
}

// resolvePlatform reads the HW code and picks the replay platform. A
// --chip flag must agree with what the boot ROM reports.
func resolvePlatform(c *brom.Client, db *chip.DB) (*replay.Platform, *chip.Profile, error) {
	plat, prof, err := replay.Detect(c, db)
	if err != nil {
		return nil, nil, err
	}
	if chipName != "" && chipName != prof.Name {
		return nil, nil, fmt.Errorf("boot ROM reports %s (hw code 0x%04x), not %s", prof.Name, prof.HWCode, chipName)
	}
	return plat, prof, nil
}

// profileOrNil looks up --chip, if given.
func profileOrNil(db *chip.DB) (*chip.Profile, error) {
	if chipName == "" {
		return nil, nil
	}
	return db.Lookup(chipName)
}

// regionNames picks dump file names: --regions if given, else the
// regions the matching demonstration payload would dump on prof.
func regionNames(prof *chip.Profile, format string, regions []string) ([]string, error) {
	if len(regions) > 0 {
		if prof != nil {
			if _, err := prof.SelectRegions(regions); err != nil {
				return nil, err
			}
		}
		return regions, nil
	}
	if prof == nil {
		return nil, nil
	}

	progName := "usb-dump"
	if format == "text" {
		progName = "uart-dump"
	}
	prog, err := payload.Lookup(progName)
	if err != nil {
		return nil, err
	}
	return regionsOf(prog.DefaultRegions(prof)), nil
}

// collected is what receiveDump got from the device.
type collected struct {
	Files      []receiver.File
	Transcript string
	Bytes      int
}

// receiveDump reads the device's output in the given format and writes
// dump files to outputDir.
func receiveDump(ctx context.Context, p *ui.Printer, r io.Reader, format string, names []string) (*collected, error) {
	out := &collected{}

	switch format {
	case "binary":
		tr := ui.StartTransfer(p.Writer(), "Receiving dump", names, len(names))
		files, err := receiver.ReceiveBinary(ctx, r, receiver.Options{
			Dir:           outputDir,
			Names:         names,
			ExpectRegions: len(names),
			Progress:      tr.Update,
		})
		tr.Finish(err)
		out.Files = files
		for _, f := range files {
			out.Bytes += f.Size
		}
		return out, err

	case "text":
		var transcript bytes.Buffer
		echo := io.Writer(&transcript)
		if verbose {
			echo = io.MultiWriter(&transcript, os.Stdout)
		}
		res, err := receiver.ReceiveText(ctx, r, echo, "")
		out.Transcript = transcript.String()
		if err != nil {
			return out, err
		}
		files, err := receiver.SaveAll(outputDir, res.Regions, names)
		out.Files = files
		for _, f := range files {
			out.Bytes += f.Size
		}
		return out, err

	case "greedy":
		n, err := receiver.ReceiveGreedy(ctx, r, func(chunk []byte) {
			p.Println(fmt.Sprintf("  %X", chunk))
		})
		out.Bytes = n
		return out, err

	case "none":
		return out, nil

	default:
		return nil, fmt.Errorf("unknown receive format %q (want binary, text, greedy or none)", format)
	}
}

// printCollected prints the result box for a finished receive.
func printCollected(p *ui.Printer, title string, c *collected, err error) {
	// verbose mode already echoed the transcript live
	if c != nil && c.Transcript != "" && !verbose {
		p.Println(ui.NewTranscript(c.Transcript).Without(dump.TextLabel).SetWidth(p.Width()).SetMaxLines(20).Render())
	}

	details := map[string]string{}
	var paths []string
	if c != nil {
		details["Bytes"] = fmt.Sprintf("%d", c.Bytes)
		for _, f := range c.Files {
			paths = append(paths, f.Path)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		if len(paths) > 0 {
			p.PrintResult(ui.NewWarningResult(title+" incomplete", details).SetFiles(paths))
		}
		p.PrintError(title, err, []string{
			"Check the payload streams the format given with --format",
			"Files received before the error were kept",
			"Run with --log-level debug to see every transfer",
		})
		return
	}
	p.PrintResult(ui.NewSuccessResult(title, details).SetFiles(paths))
}
