package bulk

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// TargetState is the role an item asks an endpoint to take.
type TargetState string

const (
	StatePrimary   TargetState = "primary"
	StateSecondary TargetState = "secondary"
)

var validate = validator.New()

// Item is one requested role change.
type Item struct {
	Service string      `json:"service" validate:"required"`
	URL     string      `json:"url" validate:"required"`
	State   TargetState `json:"state" validate:"required,oneof=primary secondary"`
}

// Label is the human readable form shown while the item is in flight.
func (i Item) Label() string {
	return fmt.Sprintf("%s: %s → %s", i.Service, i.URL, i.State)
}

// ValidateItems rejects an empty list or any item with a missing field or unknown state.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// ItemResult is the outcome of one item.
type ItemResult struct {
	Service      string      `json:"service"`
	URL          string      `json:"url"`
	TargetStatus TargetState `json:"targetStatus"`
	Success      bool        `json:"success"`
	Error        string      `json:"error,omitempty"`
	// FailedDemotions lists endpoints that could not be demoted after a successful promotion.
	FailedDemotions []string `json:"failedDemotions,omitempty"`
}

// Progress is a snapshot of a bulk operation.
type Progress struct {
	ID          string       `json:"id"`
	Username    string       `json:"username,omitempty"`
	Total       int          `json:"totalItems"`
	Completed   int          `json:"completedItems"`
	Failed      int          `json:"failedItems"`
	CurrentItem string       `json:"currentItem,omitempty"`
	Results     []ItemResult `json:"results"`
	Done        bool         `json:"done"`
	Cancelled   bool         `json:"cancelled"`
	StartedAt   time.Time    `json:"startedAt"`
	FinishedAt  *time.Time   `json:"finishedAt,omitempty"`
}
