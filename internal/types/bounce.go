package types

import (
	"fmt"

	"github.com/samber/lo"
)

// BounceType classifies a delivery failure signal
type BounceType string

const (
	BounceTypeSoft BounceType = "soft"
	BounceTypeHard BounceType = "hard"
)

func (b BounceType) Validate() error {
	if !lo.Contains([]BounceType{BounceTypeSoft, BounceTypeHard}, b) {
		return fmt.Errorf("invalid bounce type: %s", b)
	}
	return nil
}

// BlockStatus is the status of a blocklist entry
type BlockStatus string

const (
	BlockStatusSoft BlockStatus = "soft"
	BlockStatusHard BlockStatus = "hard"
)

// BounceAction is the outcome recorded for one consumed bounce event
type BounceAction string

const (
	BounceActionRecordSoft  BounceAction = "record_soft"
	BounceActionPromoteHard BounceAction = "promote_hard"
	BounceActionBlockHard   BounceAction = "block_hard"
	BounceActionAlreadyHard BounceAction = "already_hard"
)
