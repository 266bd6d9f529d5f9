// Package events receives content-change notifications from the CMS over NATS
// and turns them into cache invalidation and search-engine pings.
package events

import (
	"encoding/json"
	"fmt"

	"newsmap/internal/domain/entity"
)

// Subject is the NATS subject content-change events are published on.
const Subject = "newsmap.content.changed"

// QueueGroup spreads events across worker replicas so each is handled once.
const QueueGroup = "newsmap-worker"

// Change is the kind of content change.
type Change string

const (
	ChangePublished   Change = "published"
	ChangeUpdated     Change = "updated"
	ChangeUnpublished Change = "unpublished"
	ChangeDeleted     Change = "deleted"
)

func (c Change) valid() bool {
	switch c {
	case ChangePublished, ChangeUpdated, ChangeUnpublished, ChangeDeleted:
		return true
	}
	return false
}

// ContentChanged is the event payload.
type ContentChanged struct {
	ItemID      int64  `json:"item_id"`
	Change      Change `json:"change"`
	Significant bool   `json:"significant"`
}

// Validate checks that the event names a real item and a known change.
func (e ContentChanged) Validate() error {
	if e.ItemID <= 0 {
		return &entity.ValidationError{Field: "item_id", Message: "must be positive"}
	}
	if !e.Change.valid() {
		return &entity.ValidationError{Field: "change", Message: fmt.Sprintf("unknown change %q", e.Change)}
	}
	return nil
}

// Decode parses and validates an event payload.
func Decode(data []byte) (ContentChanged, error) {
	var e ContentChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return ContentChanged{}, fmt.Errorf("Decode: %w: %v", entity.ErrInvalidInput, err)
	}
	if err := e.Validate(); err != nil {
		return ContentChanged{}, fmt.Errorf("Decode: %w: %w", entity.ErrInvalidInput, err)
	}
	return e, nil
}
