package dump

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

// Block is one region recovered from a stream.
type Block struct {
	Index  int
	Name   string
	Length uint32
	Data   []byte
}

// Decoder reads a binary dump stream.
type Decoder struct {
	r      io.Reader
	offset int64
	index  int
	hello  bool
	done   bool

	// ExpectRegions, when non-zero, is the number of blocks the stream
	// must carry. After that many blocks the next word must be GOODBYE.
	ExpectRegions int

	// Names labels blocks by position
	Names []string

	// Progress, if set, is called as block data arrives
	Progress func(index int, read, total uint64)
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

func (d *Decoder) readWord(block int) (uint32, error) {
	var buf [4]byte
	n, err := io.ReadFull(d.r, buf[:])
	d.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, &TruncatedError{Block: block, Want: 4, Got: uint64(n), Err: err}
		}
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// Next returns the next block. It returns io.EOF once GOODBYE was read.
func (d *Decoder) Next() (Block, error) {
	if d.done {
		return Block{}, io.EOF
	}

	if !d.hello {
		off := d.offset
		w, err := d.readWord(-1)
		if err != nil {
			return Block{}, err
		}
		if w != Hello {
			return Block{}, &MagicError{Want: Hello, Got: w, Offset: off}
		}
		d.hello = true
	}

	off := d.offset
	w, err := d.readWord(-1)
	if err != nil {
		return Block{}, err
	}

	if d.ExpectRegions > 0 && d.index == d.ExpectRegions {
		if w != Goodbye {
			return Block{}, &MagicError{Want: Goodbye, Got: w, Offset: off}
		}
		d.done = true
		return Block{}, io.EOF
	}
	if w == Goodbye {
		d.done = true
		if d.ExpectRegions > 0 {
			return Block{}, &CountError{Want: d.ExpectRegions, Got: d.index}
		}
		return Block{}, io.EOF
	}

	b := Block{Index: d.index, Length: w}
	if d.index < len(d.Names) {
		b.Name = d.Names[d.index]
	}

	var data bytes.Buffer
	var src io.Reader = io.LimitReader(d.r, int64(w))
	if d.Progress != nil {
		src = &progressReader{r: src, fn: func(n uint64) { d.Progress(b.Index, n, uint64(w)) }}
	}
	n, err := io.Copy(&data, src)
	d.offset += n
	if err != nil {
		return Block{}, err
	}
	if n < int64(w) {
		return Block{}, &TruncatedError{Block: d.index, Want: uint64(w), Got: uint64(n), Err: io.ErrUnexpectedEOF}
	}

	b.Data = data.Bytes()
	d.index++
	return b, nil
}

// Decode reads the whole stream.
func (d *Decoder) Decode() ([]Block, error) {
	var blocks []Block
	for {
		b, err := d.Next()
		if err == io.EOF {
			return blocks, nil
		}
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)
	}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.offset
}

type progressReader struct {
	r    io.Reader
	read uint64
	fn   func(read uint64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += uint64(n)
		p.fn(p.read)
	}
	return n, err
}

// ParseText recovers region contents from a captured text dump. Lines
// that do not contain the "dump:" label are ignored; CR line endings are
// tolerated and hex digits may be of either case.
func ParseText(r io.Reader) ([][]byte, error) {
	var regions [][]byte

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		i := strings.Index(text, TextLabel)
		if i < 0 {
			continue
		}
		digits := text[i+len(TextLabel):]
		if len(digits)%8 != 0 {
			return regions, &TextError{Line: line, Err: errors.New("digit count is not a multiple of 8")}
		}
		data, err := hex.DecodeString(digits)
		if err != nil {
			return regions, &TextError{Line: line, Err: err}
		}
		regions = append(regions, data)
	}
	if err := sc.Err(); err != nil {
		return regions, err
	}
	return regions, nil
}
