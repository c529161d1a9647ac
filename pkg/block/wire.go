package block

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ternarybob/quickfix/pkg/stream"
)

const (
	// FieldSep separates the six fields of a record.
	FieldSep = '\x1f'
	// RecordEnd terminates a record.
	RecordEnd = '\x00'
)

// ErrMalformed is returned when a record does not have six fields or a
// numeric field does not parse.
var ErrMalformed = errors.New("malformed block record")

// Encode renders b as one wire record including its terminator.
func Encode(b Block) string {
	var sb strings.Builder
	sb.WriteString(b.File)
	sb.WriteByte(FieldSep)
	for _, n := range []int{b.Line, b.Column, b.EndLine, b.EndColumn} {
		if n > 0 {
			sb.WriteString(strconv.Itoa(n))
		}
		sb.WriteByte(FieldSep)
	}
	sb.WriteString(b.Text)
	sb.WriteByte(RecordEnd)
	return sb.String()
}

// Decode parses a single record. The terminator is optional.
func Decode(record string) (Block, error) {
	record = strings.TrimSuffix(record, string(RecordEnd))
	fields := strings.SplitN(record, string(FieldSep), 6)
	if len(fields) != 6 {
		return Block{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(fields))
	}
	b := Block{Text: fields[5]}
	b.File = fields[0]
	nums := []*int{&b.Line, &b.Column, &b.EndLine, &b.EndColumn}
	for i, p := range nums {
		if fields[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return Block{}, fmt.Errorf("%w: field %d: %q", ErrMalformed, i+1, fields[i+1])
		}
		*p = n
	}
	return b, nil
}

// Encoder writes blocks to an underlying writer.
type Encoder struct {
	w     io.Writer
	count int
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one record.
func (e *Encoder) Encode(b Block) error {
	if _, err := io.WriteString(e.w, Encode(b)); err != nil {
		return err
	}
	e.count++
	return nil
}

// Count returns the number of records written so far.
func (e *Encoder) Count() int {
	return e.count
}

// EncodeAll drains s into the encoder and returns the number of records.
func (e *Encoder) EncodeAll(s stream.Stream[Block]) (int, error) {
	n := 0
	for s.Next() {
		if err := e.Encode(s.Value()); err != nil {
			return n, err
		}
		n++
	}
	return n, s.Err()
}

// NewReader decodes a stream of records from r.
func NewReader(r io.Reader) stream.Stream[Block] {
	br := bufio.NewReader(r)
	return stream.FromFunc(func() (Block, bool, error) {
		rec, err := br.ReadString(RecordEnd)
		if err != nil && !errors.Is(err, io.EOF) {
			return Block{}, false, err
		}
		if rec == "" {
			return Block{}, false, nil
		}
		b, derr := Decode(rec)
		if derr != nil {
			return Block{}, false, derr
		}
		return b, true, nil
	})
}
