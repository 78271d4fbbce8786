package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
)

// generateErrorFixtures creates test fixtures with sample metadata for each error type
func generateErrorFixtures() []Error {
	return []Error{
		INTERNAL_ERROR.New("internal failure").
			WithMetadata(map[string]any{"component": "checkpoint"}),
		INDEX_UNDERFLOW.New("pop on empty index").
			WithMetadata(UnderflowMetadata{Operation: "pop_block"}),
		SERIALIZATION_FAILED.Wrap(io.ErrUnexpectedEOF).
			WithMetadata(SerializationMetadata{Field: "blockCount", Direction: "input"}),
		CORRUPT_INDEX.New("entry height out of range").
			WithMetadata(CorruptIndexMetadata{Position: 2, Height: 10, BlockCount: 5}),
		INVALID_BLOCK_HEIGHT.New("unexpected block height").
			WithMetadata(BlockHeightMetadata{ExpectedHeight: 3, GotHeight: 7}),
		NEGATIVE_DEPOSIT_AMOUNT.New("negative total").
			WithMetadata(NegativeAmountMetadata{Height: 1, Amount: -5}),
		INDEX_NOT_FOUND.New("no snapshot").
			WithMetadata(IndexNotFoundMetadata{Name: "main"}),
		INVALID_ARGUMENT.New("bad height %q", "abc"),
	}
}

func TestErrorFixtures(t *testing.T) {
	seen := make(map[uint16]struct{})
	for _, err := range generateErrorFixtures() {
		require.NotNil(t, err)
		require.NotEmpty(t, err.Error())
		require.NotEmpty(t, err.CodeName())
		require.NotNil(t, err.Log())

		_, dup := seen[err.Code()]
		require.False(t, dup, "duplicated code %d", err.Code())
		seen[err.Code()] = struct{}{}
	}
}

func TestErrorMessageAndMetadata(t *testing.T) {
	err := CORRUPT_INDEX.New("heights not increasing").
		WithMetadata(CorruptIndexMetadata{Position: 1, Height: 4, BlockCount: 9, Reason: "order"})

	require.Equal(t, "CORRUPT_INDEX (3): heights not increasing", err.Error())
	require.Equal(t, grpccodes.DataLoss, err.GrpcCode())
	require.Equal(t, map[string]string{
		"position":    "1",
		"height":      "4",
		"block_count": "9",
		"reason":      "order",
	}, err.Metadata())
}

func TestErrorUnwrapAndCode(t *testing.T) {
	err := SERIALIZATION_FAILED.Wrap(io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("failed to load snapshot: %w", err)

	require.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
	require.True(t, Is(wrapped, SERIALIZATION_FAILED))
	require.False(t, Is(wrapped, CORRUPT_INDEX))

	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	require.Equal(t, SERIALIZATION_FAILED.Code, code)

	_, ok = CodeOf(io.EOF)
	require.False(t, ok)
}
