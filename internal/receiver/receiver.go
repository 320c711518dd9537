// Package receiver collects what a running payload sends back to the host
// and stores it as files.
//
// The receivers block on the port. To stop one early, cancel its context
// and close the port; the read then fails and the receiver returns.
package receiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/dump"
	"github.com/muurk/bromdump/internal/logging"
)

// File is one region saved to disk.
type File struct {
	Path string
	Name string
	Size int
}

// Options control where and how blocks are saved.
type Options struct {
	// Dir receives the files. Empty means the working directory.
	Dir string

	// Names, when set, names files <name>.bin by block position.
	// Blocks beyond the list fall back to dump-N.bin.
	Names []string

	// ExpectRegions is passed to the decoder
	ExpectRegions int

	// Progress, if set, is called as block data arrives
	Progress func(index int, read, total uint64)
}

// FileName is the file a block is saved under: <name>.bin for named
// blocks, otherwise dump-N.bin counting from 1.
func FileName(index int, name string) string {
	if name != "" {
		return name + ".bin"
	}
	return fmt.Sprintf("dump-%d.bin", index+1)
}

// Save writes data as the file for block index.
func Save(dir string, index int, name string, data []byte) (File, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return File{}, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	path := filepath.Join(dir, FileName(index, name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return File{}, fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return File{}, fmt.Errorf("failed to save %s: %w", path, err)
	}

	logging.Info("Saved region", zap.String("file", path), zap.Int("size", len(data)))
	return File{Path: path, Name: name, Size: len(data)}, nil
}

// ReceiveBinary reads a binary dump stream and saves every block. Files
// saved before an error are returned with it.
func ReceiveBinary(ctx context.Context, r io.Reader, opts Options) ([]File, error) {
	dec := dump.NewDecoder(r)
	dec.Names = opts.Names
	dec.ExpectRegions = opts.ExpectRegions
	dec.Progress = opts.Progress

	logging.Info("Waiting for HELLO")

	var files []File
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		b, err := dec.Next()
		if errors.Is(err, io.EOF) {
			logging.Info("Received GOODBYE", zap.Int("regions", len(files)))
			return files, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return files, ctx.Err()
			}
			return files, err
		}

		f, err := Save(opts.Dir, b.Index, b.Name, b.Data)
		if err != nil {
			return files, err
		}
		files = append(files, f)
	}
}

// ReceiveGreedy reads the port four bytes at a time and hands every chunk
// to fn until the port reports EOF or ctx is cancelled. It returns the
// number of bytes received. A short final chunk is delivered as is.
func ReceiveGreedy(ctx context.Context, r io.Reader, fn func(chunk []byte)) (int, error) {
	total := 0
	buf := make([]byte, 4)
	for {
		if ctx.Err() != nil {
			return total, nil
		}

		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += n
			fn(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || ctx.Err() != nil {
				return total, nil
			}
			return total, err
		}
	}
}

// TextResult is a captured UART transcript and the regions decoded from it.
type TextResult struct {
	Transcript []byte
	Regions    [][]byte
}

// ReceiveText captures the port until the closing banner appears, copying
// everything to echo if it is non-nil, then decodes the dump lines.
func ReceiveText(ctx context.Context, r io.Reader, echo io.Writer, closing string) (*TextResult, error) {
	if closing == "" {
		closing = dump.DefaultBanners.Close
	}

	var transcript bytes.Buffer
	buf := make([]byte, 256)
	for found := false; !found; {
		if err := ctx.Err(); err != nil {
			return &TextResult{Transcript: transcript.Bytes()}, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			transcript.Write(buf[:n])
			if echo != nil {
				echo.Write(buf[:n])
			}
			found = bytes.Contains(tail(transcript.Bytes(), len(closing)+n), []byte(closing))
		}
		if err != nil && !found {
			if errors.Is(err, io.EOF) {
				return &TextResult{Transcript: transcript.Bytes()},
					fmt.Errorf("port closed before %q: %w", closing, io.ErrUnexpectedEOF)
			}
			if ctx.Err() != nil {
				return &TextResult{Transcript: transcript.Bytes()}, ctx.Err()
			}
			return &TextResult{Transcript: transcript.Bytes()}, err
		}
	}

	regions, err := dump.ParseText(bytes.NewReader(transcript.Bytes()))
	if err != nil {
		return &TextResult{Transcript: transcript.Bytes()}, err
	}
	logging.Info("Text dump complete", zap.Int("regions", len(regions)))
	return &TextResult{Transcript: transcript.Bytes(), Regions: regions}, nil
}

// SaveAll writes decoded regions, naming them from names by position.
func SaveAll(dir string, regions [][]byte, names []string) ([]File, error) {
	var files []File
	for i, data := range regions {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		f, err := Save(dir, i, name, data)
		if err != nil {
			return files, err
		}
		files = append(files, f)
	}
	return files, nil
}

// tail returns the last n bytes of b.
func tail(b []byte, n int) []byte {
	if n < len(b) {
		return b[len(b)-n:]
	}
	return b
}

