package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resit/internal/core"
)

// Receipt change operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ReceiptChanged announces a receipt write. Consumers use the day keys to
// decide which cached ranges are affected; the receipt itself is not sent.
type ReceiptChanged struct {
	ID          string    `json:"id"`
	Op          string    `json:"op"`
	Day         string    `json:"day"`
	PreviousDay string    `json:"previous_day,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReceiptChanged creates a message stamped with the current time.
func NewReceiptChanged(id, op, day, previousDay string) *ReceiptChanged {
	if previousDay == day {
		previousDay = ""
	}
	return &ReceiptChanged{
		ID:          id,
		Op:          op,
		Day:         day,
		PreviousDay: previousDay,
		Timestamp:   time.Now().UTC(),
	}
}

// Days returns every calendar day touched by the change.
func (m *ReceiptChanged) Days() []string {
	if m.PreviousDay == "" {
		return []string{m.Day}
	}
	return []string{m.Day, m.PreviousDay}
}

func (m *ReceiptChanged) Validate() error {
	if m.ID == "" {
		return errors.New("missing receipt id")
	}
	switch m.Op {
	case OpCreated, OpUpdated, OpDeleted:
	default:
		return fmt.Errorf("unknown op %q", m.Op)
	}
	for _, d := range m.Days() {
		if _, err := core.ParseDate(d); err != nil {
			return fmt.Errorf("day %q: %w", d, err)
		}
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ReceiptChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptChangedFromJSON decodes and validates a message.
func ReceiptChangedFromJSON(data []byte) (*ReceiptChanged, error) {
	var msg ReceiptChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
