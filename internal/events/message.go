// Package events defines the expense.recorded message shared by the AMQP and
// Kafka transports.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// TypeExpenseRecorded names the event on the wire.
const TypeExpenseRecorded = "expense.recorded"

// CurrentVersion is the schema version stamped on new messages.
const CurrentVersion int64 = 1

// ExpenseRecorded carries only the id; consumers fetch the record from the
// store so a stale message never overwrites newer data.
type ExpenseRecorded struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseRecorded(id, version int64) *ExpenseRecorded {
	return &ExpenseRecorded{
		ID:        id,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseRecorded) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedFromJSON decodes and validates a message body.
func ExpenseRecordedFromJSON(data []byte) (*ExpenseRecorded, error) {
	var msg ExpenseRecorded
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TypeExpenseRecorded, err)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("decode %s: invalid id %d", TypeExpenseRecorded, msg.ID)
	}
	return &msg, nil
}
