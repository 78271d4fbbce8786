// Package serialization provides a bidirectional serializer: a single
// Serialize method on a type describes its layout and is used both to encode
// and to decode it.
package serialization

import (
	"bytes"
	"fmt"
)

// MaxArrayLength bounds the element count accepted when decoding an array.
const MaxArrayLength = 1 << 26

// MaxPrealloc caps the capacity a decoder may reserve from a length prefix
// before the elements are read. Larger arrays grow as elements arrive, so a
// short input claiming a huge length fails on EOF without allocating for it.
const MaxPrealloc = 1024

// Serializer is implemented by both encoders and decoders. Every method takes
// a pointer: an output serializer reads the value from it, an input
// serializer stores the decoded value into it. The name argument labels the
// field for self-describing formats and error reporting.
type Serializer interface {
	IsInput() bool
	BeginArray(size *uint64, name string) error
	EndArray() error
	Uint32(v *uint32, name string) error
	Int64(v *int64, name string) error
	Uint64(v *uint64, name string) error
}

// Serializable is implemented by types that describe their layout through a
// Serializer.
type Serializable interface {
	Serialize(s Serializer) error
}

// Marshal encodes v with the binary output serializer.
func Marshal(v Serializable) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := v.Serialize(NewBinaryOutput(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v with the binary input serializer. Bytes left
// over after v is fully decoded are reported as an error.
func Unmarshal(data []byte, v Serializable) error {
	r := bytes.NewReader(data)
	if err := v.Serialize(NewBinaryInput(r)); err != nil {
		return err
	}
	if r.Len() > 0 {
		return fmt.Errorf("%d trailing bytes after decoding", r.Len())
	}
	return nil
}
