package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Event string

const (
	EventInsert Event = "INSERT"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
)

// Change is one row-level write, as seen by subscribers.
// Keys holds the column values filters can match on.
type Change struct {
	Table string            `json:"table"`
	Event Event             `json:"event"`
	Keys  map[string]string `json:"keys"`
	Row   json.RawMessage   `json:"row"`
	At    time.Time         `json:"at"`
}

// NewChange encodes row as the change payload
func NewChange(table string, event Event, row any, keys map[string]string) (Change, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return Change{}, fmt.Errorf("encode %s row: %w", table, err)
	}
	return Change{
		Table: table,
		Event: event,
		Keys:  keys,
		Row:   raw,
		At:    time.Now().UTC(),
	}, nil
}

// Decode unmarshals the row payload into v
func (c Change) Decode(v any) error {
	if len(c.Row) == 0 {
		return fmt.Errorf("%s change has no row", c.Table)
	}
	return json.Unmarshal(c.Row, v)
}

// Filter selects changes whose key column equals Value. The zero Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

// Eq builds a column equality filter
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

func (f Filter) Matches(c Change) bool {
	if f.Column == "" {
		return true
	}
	v, ok := c.Keys[f.Column]
	return ok && v == f.Value
}

func (f Filter) String() string {
	if f.Column == "" {
		return "*"
	}
	return f.Column + "=eq." + f.Value
}

type Handler func(Change)

// Subscription is a live registration on a feed
type Subscription interface {
	Unsubscribe()
}

// Publisher accepts changes produced by the store
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}
