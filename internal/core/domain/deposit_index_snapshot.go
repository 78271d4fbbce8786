package domain

import (
	"bytes"
	"fmt"

	"github.com/arkade-os/depositd/pkg/errors"
	"github.com/arkade-os/depositd/pkg/serialization"
)

// SnapshotVersion prefixes every encoded index. The body layout is frozen;
// any change to it gets a new version.
const SnapshotVersion byte = 1

// MarshalBinary encodes the index as a version byte followed by its binary
// serialization.
func (d *DepositIndex) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer([]byte{SnapshotVersion})
	if err := d.Serialize(serialization.NewBinaryOutput(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary. On failure the
// index is left untouched.
func (d *DepositIndex) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return errors.SERIALIZATION_FAILED.New("empty deposit index snapshot").
			WithMetadata(errors.SerializationMetadata{Field: "version", Direction: "input"})
	}
	if data[0] != SnapshotVersion {
		return errors.SERIALIZATION_FAILED.New(
			"unsupported deposit index snapshot version %d", data[0],
		).WithMetadata(errors.SerializationMetadata{Field: "version", Direction: "input"})
	}

	decoded := &DepositIndex{}
	r := bytes.NewReader(data[1:])
	if err := decoded.Serialize(serialization.NewBinaryInput(r)); err != nil {
		return err
	}
	if r.Len() > 0 {
		return errors.SERIALIZATION_FAILED.Wrap(
			fmt.Errorf("%d trailing bytes after deposit index", r.Len()),
		).WithMetadata(errors.SerializationMetadata{Field: "blockCount", Direction: "input"})
	}
	*d = *decoded
	return nil
}
