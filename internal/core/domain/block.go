package domain

import "time"

// BlockDeposits describes how a connected block changed the locked total:
// Locked is the amount of deposits created in the block, Unlocked the amount
// of deposits withdrawn in it.
type BlockDeposits struct {
	Height   DepositHeight
	Hash     string
	Locked   DepositAmount
	Unlocked DepositAmount
}

func (b BlockDeposits) Delta() DepositAmount {
	return b.Locked - b.Unlocked
}

// Tip is the summary of the index mirrored to the live store.
type Tip struct {
	Name       string        `json:"name"`
	Size       DepositHeight `json:"size"`
	Entries    int           `json:"entries"`
	FullAmount DepositAmount `json:"full_amount"`
	UpdatedAt  int64         `json:"updated_at"`
}

func NewTip(name string, idx *DepositIndex) Tip {
	return Tip{
		Name:       name,
		Size:       idx.Size(),
		Entries:    idx.EntryCount(),
		FullAmount: idx.FullDepositAmount(),
		UpdatedAt:  time.Now().Unix(),
	}
}
