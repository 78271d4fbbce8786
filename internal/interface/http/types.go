package httpservice

import (
	"github.com/arkade-os/depositd/internal/core/application"
	"github.com/arkade-os/depositd/internal/core/domain"
)

type pushBlockRequest struct {
	Height *uint32 `json:"height" binding:"required"`
	Amount *int64  `json:"amount" binding:"required"`
}

type applyBlockRequest struct {
	Height   *uint32 `json:"height" binding:"required"`
	Hash     string  `json:"hash"`
	Locked   int64   `json:"locked"`
	Unlocked int64   `json:"unlocked"`
}

type rollbackRequest struct {
	From *uint32 `json:"from" binding:"required"`
}

type rollbackResponse struct {
	Removed uint32    `json:"removed"`
	Info    indexInfo `json:"info"`
}

type amountResponse struct {
	Height *uint32 `json:"height,omitempty"`
	Amount int64   `json:"amount"`
}

type entriesResponse struct {
	Entries []domain.DepositIndexEntry `json:"entries"`
}

type indexInfo struct {
	Name               string `json:"name"`
	Size               uint32 `json:"size"`
	Entries            int    `json:"entries"`
	FullDepositAmount  int64  `json:"full_deposit_amount"`
	Dirty              bool   `json:"dirty"`
	LastCheckpointAt   int64  `json:"last_checkpoint_at"`
	CheckpointInterval int64  `json:"checkpoint_interval"`
	CheckpointUnit     string `json:"checkpoint_unit,omitempty"`
}

type errorResponse struct {
	Error    string            `json:"error"`
	Code     uint16            `json:"code"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func toIndexInfo(info *application.IndexInfo) indexInfo {
	if info == nil {
		return indexInfo{}
	}
	return indexInfo{
		Name:               info.Name,
		Size:               info.Size,
		Entries:            info.Entries,
		FullDepositAmount:  info.FullDepositAmount,
		Dirty:              info.Dirty,
		LastCheckpointAt:   info.LastCheckpointAt,
		CheckpointInterval: info.CheckpointInterval,
		CheckpointUnit:     info.CheckpointUnit,
	}
}
