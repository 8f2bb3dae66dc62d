// Package events carries the fact-appended notification from the fact store
// to the reorder point recompute.
package events

import (
	"context"
	"time"
)

const TypeFactAppended = "fact.appended"

// FactAppended is published after a fact row is durably stored.
type FactAppended struct {
	Type       string    `json:"event_type"`
	ProductID  int64     `json:"product_id"`
	Date       time.Time `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewFactAppended stamps the event with the current time.
func NewFactAppended(productID int64, date time.Time) FactAppended {
	return FactAppended{
		Type:       TypeFactAppended,
		ProductID:  productID,
		Date:       date,
		OccurredAt: time.Now().UTC(),
	}
}

type Handler func(ctx context.Context, evt FactAppended) error

type Publisher interface {
	Publish(ctx context.Context, evt FactAppended) error
}

type Subscriber interface {
	Subscribe(h Handler)
}

// Bus is both ends of a transport.
type Bus interface {
	Publisher
	Subscriber
}
