package serialization

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// Array lengths use the Bitcoin CompactSize encoding, fixed-size integers are
// little endian.

var littleEndian = binary.LittleEndian

// BinaryOutput writes values to the underlying writer.
type BinaryOutput struct {
	w     io.Writer
	depth int
}

// NewBinaryOutput returns an output serializer writing to w.
func NewBinaryOutput(w io.Writer) *BinaryOutput {
	return &BinaryOutput{w: w}
}

func (o *BinaryOutput) IsInput() bool { return false }

func (o *BinaryOutput) BeginArray(size *uint64, name string) error {
	if err := wire.WriteVarInt(o.w, 0, *size); err != nil {
		return fmt.Errorf("failed to write %s length: %w", name, err)
	}
	o.depth++
	return nil
}

func (o *BinaryOutput) EndArray() error {
	if o.depth == 0 {
		return errors.New("end of array without matching begin")
	}
	o.depth--
	return nil
}

func (o *BinaryOutput) Uint32(v *uint32, name string) error {
	var buf [4]byte
	littleEndian.PutUint32(buf[:], *v)
	return o.write(buf[:], name)
}

func (o *BinaryOutput) Int64(v *int64, name string) error {
	var buf [8]byte
	littleEndian.PutUint64(buf[:], uint64(*v))
	return o.write(buf[:], name)
}

func (o *BinaryOutput) Uint64(v *uint64, name string) error {
	var buf [8]byte
	littleEndian.PutUint64(buf[:], *v)
	return o.write(buf[:], name)
}

func (o *BinaryOutput) write(buf []byte, name string) error {
	if _, err := o.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// BinaryInput reads values from the underlying reader.
type BinaryInput struct {
	r     io.Reader
	depth int
}

// NewBinaryInput returns an input serializer reading from r.
func NewBinaryInput(r io.Reader) *BinaryInput {
	return &BinaryInput{r: r}
}

func (i *BinaryInput) IsInput() bool { return true }

func (i *BinaryInput) BeginArray(size *uint64, name string) error {
	n, err := wire.ReadVarInt(i.r, 0)
	if err != nil {
		return fmt.Errorf("failed to read %s length: %w", name, normalizeEOF(err))
	}
	if n > MaxArrayLength {
		return fmt.Errorf(
			"%s length %d exceeds maximum of %d", name, n, MaxArrayLength,
		)
	}
	*size = n
	i.depth++
	return nil
}

func (i *BinaryInput) EndArray() error {
	if i.depth == 0 {
		return errors.New("end of array without matching begin")
	}
	i.depth--
	return nil
}

func (i *BinaryInput) Uint32(v *uint32, name string) error {
	var buf [4]byte
	if err := i.read(buf[:], name); err != nil {
		return err
	}
	*v = littleEndian.Uint32(buf[:])
	return nil
}

func (i *BinaryInput) Int64(v *int64, name string) error {
	var buf [8]byte
	if err := i.read(buf[:], name); err != nil {
		return err
	}
	*v = int64(littleEndian.Uint64(buf[:]))
	return nil
}

func (i *BinaryInput) Uint64(v *uint64, name string) error {
	var buf [8]byte
	if err := i.read(buf[:], name); err != nil {
		return err
	}
	*v = littleEndian.Uint64(buf[:])
	return nil
}

func (i *BinaryInput) read(buf []byte, name string) error {
	if _, err := io.ReadFull(i.r, buf); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, normalizeEOF(err))
	}
	return nil
}

// A clean EOF in the middle of a structure is still a truncated input.
func normalizeEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
