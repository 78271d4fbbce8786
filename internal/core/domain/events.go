package domain

const DepositIndexTopic = "deposit_index"

type EventType string

const (
	EventBlockPushed      EventType = "BlockPushed"
	EventBlockPopped      EventType = "BlockPopped"
	EventBlocksRolledBack EventType = "BlocksRolledBack"
	EventIndexImported    EventType = "IndexImported"
)

// IndexEvent is emitted after every mutation of a deposit index.
type IndexEvent struct {
	Type       EventType     `json:"type"`
	Index      string        `json:"index"`
	Height     DepositHeight `json:"height"`
	Removed    DepositHeight `json:"removed,omitempty"`
	BlockHash  string        `json:"block_hash,omitempty"`
	Size       DepositHeight `json:"size"`
	FullAmount DepositAmount `json:"full_amount"`
	Timestamp  int64         `json:"timestamp"`
}
