package types

import (
	"fmt"

	"github.com/samber/lo"
)

// DunningStage is the escalation level of an overdue invoice
type DunningStage int

const (
	DunningStageNone DunningStage = 0
	DunningStage1    DunningStage = 1
	DunningStage2    DunningStage = 2
	DunningStage3    DunningStage = 3
)

// DunningStages lists the actionable stages in ascending order
var DunningStages = []DunningStage{DunningStage1, DunningStage2, DunningStage3}

func (s DunningStage) String() string {
	if s == DunningStageNone {
		return "none"
	}
	return fmt.Sprintf("stage_%d", int(s))
}

// IsActionable reports whether the stage is one of 1..3
func (s DunningStage) IsActionable() bool {
	return lo.Contains(DunningStages, s)
}

func (s DunningStage) Validate() error {
	if !s.IsActionable() {
		return fmt.Errorf("invalid dunning stage: %d", int(s))
	}
	return nil
}

// Previous returns the stage below s, or none
func (s DunningStage) Previous() DunningStage {
	if s <= DunningStage1 {
		return DunningStageNone
	}
	return s - 1
}

// Fee returns the dunning fee in cents charged at the stage
func (s DunningStage) Fee() int64 {
	switch s {
	case DunningStage1:
		return 250
	case DunningStage2:
		return 500
	case DunningStage3:
		return 1000
	default:
		return 0
	}
}

// Channel is the delivery channel of a dunning notice
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelLetter Channel = "letter"
)

func (c Channel) String() string {
	return string(c)
}

// ChannelFor selects the delivery channel for a stage.
// Stage 2 falls back to a letter when no email address is known.
func ChannelFor(stage DunningStage, hasEmail bool) Channel {
	switch stage {
	case DunningStage1:
		return ChannelEmail
	case DunningStage2:
		if hasEmail {
			return ChannelEmail
		}
		return ChannelLetter
	default:
		return ChannelLetter
	}
}

// EventType identifies the variant of a dunning event
type EventType string

const (
	EventTypeDunningIssued    EventType = "DUNNING_ISSUED"
	EventTypeDunningEscalated EventType = "DUNNING_ESCALATED"
	EventTypeDunningResolved  EventType = "DUNNING_RESOLVED"
)

func (e EventType) String() string {
	return string(e)
}

func (e EventType) Validate() error {
	allowed := []EventType{
		EventTypeDunningIssued,
		EventTypeDunningEscalated,
		EventTypeDunningResolved,
	}
	if !lo.Contains(allowed, e) {
		return fmt.Errorf("invalid event type: %s", e)
	}
	return nil
}

const EventSchemaVersion = "v1"
