package domain

import (
	"fmt"
	"sort"

	"github.com/arkade-os/depositd/pkg/errors"
	"github.com/arkade-os/depositd/pkg/serialization"
)

// DepositHeight is a block height. Heights are 0-based.
type DepositHeight = uint32

// DepositAmount is an amount in atomic units. It is signed so that callers
// can detect and reject negative totals.
type DepositAmount = int64

// DepositIndexEntry records the cumulative total locked in deposits as of
// Height. It is only stored at heights where the total changed.
type DepositIndexEntry struct {
	Height DepositHeight `json:"height"`
	Amount DepositAmount `json:"amount"`
}

// DepositIndex is a compacted time series of the total amount locked in
// deposits, one logical value per block. Entries are strictly increasing by
// height, every height is below the block count, and adjacent entries never
// share an amount.
//
// DepositIndex is not safe for concurrent use.
type DepositIndex struct {
	index      []DepositIndexEntry
	blockCount DepositHeight
}

// NewDepositIndex returns an empty index.
func NewDepositIndex() *DepositIndex {
	return &DepositIndex{}
}

// NewDepositIndexWithHeight returns an empty index with room for the entries
// of a chain of roughly expectedHeight blocks. The hint has no observable
// effect.
func NewDepositIndexWithHeight(expectedHeight DepositHeight) *DepositIndex {
	idx := &DepositIndex{}
	idx.Reserve(expectedHeight)
	return idx
}

// Reserve grows the entry capacity to at least expectedHeight.
func (d *DepositIndex) Reserve(expectedHeight DepositHeight) {
	if int(expectedHeight) <= cap(d.index) {
		return
	}
	index := make([]DepositIndexEntry, len(d.index), expectedHeight)
	copy(index, d.index)
	d.index = index
}

// PushBlock appends the next block with the given running total. An entry is
// stored only when the total differs from the previous one. Callers must not
// push past math.MaxUint32 blocks.
func (d *DepositIndex) PushBlock(amount DepositAmount) {
	if len(d.index) == 0 || d.index[len(d.index)-1].Amount != amount {
		d.index = append(d.index, DepositIndexEntry{
			Height: d.blockCount,
			Amount: amount,
		})
	}
	d.blockCount++
}

// PopBlock removes the last block. On an empty index it returns an
// INDEX_UNDERFLOW error and leaves the index untouched.
func (d *DepositIndex) PopBlock() error {
	if d.blockCount == 0 {
		return errors.INDEX_UNDERFLOW.New("cannot pop block from empty deposit index").
			WithMetadata(errors.UnderflowMetadata{Operation: "pop_block"})
	}
	d.blockCount--
	if n := len(d.index); n > 0 && d.index[n-1].Height == d.blockCount {
		d.index = d.index[:n-1]
	}
	return nil
}

// PopBlocks truncates the index so that from becomes the new block count and
// returns how many blocks were removed. It is a no-op returning 0 when from
// is beyond the current block count.
func (d *DepositIndex) PopBlocks(from DepositHeight) DepositHeight {
	if from > d.blockCount {
		return 0
	}
	removed := d.blockCount - from
	d.index = d.index[:sort.Search(len(d.index), func(i int) bool {
		return d.index[i].Height >= from
	})]
	d.blockCount = from
	return removed
}

// DepositAmountAtHeight returns the total locked as of the given height, 0 if
// no entry exists at or below it.
func (d *DepositIndex) DepositAmountAtHeight(height DepositHeight) DepositAmount {
	i := sort.Search(len(d.index), func(i int) bool {
		return d.index[i].Height > height
	})
	if i == 0 {
		return 0
	}
	return d.index[i-1].Amount
}

// FullDepositAmount returns the current total.
func (d *DepositIndex) FullDepositAmount() DepositAmount {
	if len(d.index) == 0 {
		return 0
	}
	return d.index[len(d.index)-1].Amount
}

// Size returns the number of blocks pushed and not popped.
func (d *DepositIndex) Size() DepositHeight {
	return d.blockCount
}

// EntryCount returns the number of stored entries.
func (d *DepositIndex) EntryCount() int {
	return len(d.index)
}

// Entries returns a copy of the stored entries.
func (d *DepositIndex) Entries() []DepositIndexEntry {
	entries := make([]DepositIndexEntry, len(d.index))
	copy(entries, d.index)
	return entries
}

func (d *DepositIndex) Clone() *DepositIndex {
	return &DepositIndex{index: d.Entries(), blockCount: d.blockCount}
}

// Validate checks the structural invariants of the index.
func (d *DepositIndex) Validate() error {
	for i, entry := range d.index {
		if entry.Height >= d.blockCount {
			return corruptIndex(i, entry, d.blockCount, "height not below block count")
		}
		if i == 0 {
			continue
		}
		prev := d.index[i-1]
		if entry.Height <= prev.Height {
			return corruptIndex(i, entry, d.blockCount, "heights not strictly increasing")
		}
		if entry.Amount == prev.Amount {
			return corruptIndex(i, entry, d.blockCount, "redundant entry with unchanged amount")
		}
	}
	return nil
}

// Serialize encodes or decodes the index depending on the direction of s.
// The layout is the array of (height, amount) pairs followed by the block
// count. Decoding replaces the index only if the whole input is read and
// passes Validate.
func (d *DepositIndex) Serialize(s serialization.Serializer) error {
	if s.IsInput() {
		decoded := &DepositIndex{}
		if err := decoded.serializeFields(s); err != nil {
			return err
		}
		if err := decoded.Validate(); err != nil {
			return err
		}
		*d = *decoded
		return nil
	}
	return d.serializeFields(s)
}

func (d *DepositIndex) serializeFields(s serialization.Serializer) error {
	size := uint64(len(d.index))
	if err := s.BeginArray(&size, "index"); err != nil {
		return serializationFailed(s, "index", err)
	}
	if s.IsInput() {
		d.index = make([]DepositIndexEntry, 0, min(size, serialization.MaxPrealloc))
		for n := uint64(0); n < size; n++ {
			var entry DepositIndexEntry
			if err := serializeEntry(s, &entry); err != nil {
				return err
			}
			d.index = append(d.index, entry)
		}
	} else {
		for i := range d.index {
			if err := serializeEntry(s, &d.index[i]); err != nil {
				return err
			}
		}
	}
	if err := s.EndArray(); err != nil {
		return serializationFailed(s, "index", err)
	}
	if err := s.Uint32(&d.blockCount, "blockCount"); err != nil {
		return serializationFailed(s, "blockCount", err)
	}
	return nil
}

func serializeEntry(s serialization.Serializer, entry *DepositIndexEntry) error {
	if err := s.Uint32(&entry.Height, "height"); err != nil {
		return serializationFailed(s, "height", err)
	}
	if err := s.Int64(&entry.Amount, "amount"); err != nil {
		return serializationFailed(s, "amount", err)
	}
	return nil
}

func corruptIndex(
	pos int, entry DepositIndexEntry, blockCount DepositHeight, reason string,
) error {
	return errors.CORRUPT_INDEX.New(
		"entry %d at height %d: %s", pos, entry.Height, reason,
	).WithMetadata(errors.CorruptIndexMetadata{
		Position:   pos,
		Height:     entry.Height,
		BlockCount: blockCount,
		Reason:     reason,
	})
}

func serializationFailed(s serialization.Serializer, field string, err error) error {
	direction := "output"
	if s.IsInput() {
		direction = "input"
	}
	return errors.SERIALIZATION_FAILED.Wrap(
		fmt.Errorf("%s of %s: %w", direction, field, err),
	).WithMetadata(errors.SerializationMetadata{Field: field, Direction: direction})
}
