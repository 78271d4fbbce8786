package serialization_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/arkade-os/depositd/pkg/serialization"
	"github.com/stretchr/testify/require"
)

type sample struct {
	values []int64
	tail   uint32
	extra  uint64
}

func (s *sample) Serialize(ser serialization.Serializer) error {
	size := uint64(len(s.values))
	if err := ser.BeginArray(&size, "values"); err != nil {
		return err
	}
	if ser.IsInput() {
		s.values = make([]int64, size)
	}
	for i := range s.values {
		if err := ser.Int64(&s.values[i], "value"); err != nil {
			return err
		}
	}
	if err := ser.EndArray(); err != nil {
		return err
	}
	if err := ser.Uint32(&s.tail, "tail"); err != nil {
		return err
	}
	return ser.Uint64(&s.extra, "extra")
}

func TestBinaryLayout(t *testing.T) {
	in := &sample{values: []int64{1, -1}, tail: 0x01020304, extra: math.MaxUint64}

	buf, err := serialization.Marshal(in)
	require.NoError(t, err)

	expected := []byte{
		0x02,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0x04, 0x03, 0x02, 0x01,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
	require.Equal(t, expected, buf)

	out := &sample{}
	require.NoError(t, serialization.Unmarshal(buf, out))
	require.Equal(t, in, out)
}

func TestLargeArrayLengthPrefix(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	out := serialization.NewBinaryOutput(buf)

	size := uint64(300)
	require.NoError(t, out.BeginArray(&size, "values"))
	require.NoError(t, out.EndArray())
	require.Equal(t, []byte{0xfd, 0x2c, 0x01}, buf.Bytes())

	in := serialization.NewBinaryInput(buf)
	var got uint64
	require.NoError(t, in.BeginArray(&got, "values"))
	require.Equal(t, size, got)
}

func TestBinaryInputFailures(t *testing.T) {
	valid, err := serialization.Marshal(&sample{values: []int64{7}, tail: 3})
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		for i := 0; i < len(valid); i++ {
			err := serialization.Unmarshal(valid[:i], &sample{})
			require.ErrorIs(t, err, io.ErrUnexpectedEOF, "prefix of %d bytes", i)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		data := append(append([]byte{}, valid...), 0x00)
		err := serialization.Unmarshal(data, &sample{})
		require.Error(t, err)
	})

	t.Run("oversized array", func(t *testing.T) {
		data := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}
		err := serialization.Unmarshal(data, &sample{})
		require.ErrorContains(t, err, "exceeds maximum")
	})

	t.Run("unbalanced end array", func(t *testing.T) {
		require.Error(t, serialization.NewBinaryInput(bytes.NewReader(nil)).EndArray())
		require.Error(t, serialization.NewBinaryOutput(io.Discard).EndArray())
	})
}
