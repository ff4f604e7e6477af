package amqp

import (
	"encoding/json"
	"time"
)

// Entities carried in change messages
const (
	EntityCenter  = "center"
	EntityRecord  = "monthly_record"
	EntityCoach   = "coach"
	EntitySalary  = "salary"
	EntityLeave   = "leave"
	EntityAccount = "account"
)

// RecordsChangedMessage tells consumers that stored records changed.
// It carries the scope only, consumers read current values from the store.
type RecordsChangedMessage struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"`
	CenterID  int64     `json:"center_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordsChangedMessage creates a message stamped with the current time
func NewRecordsChangedMessage(entity, action string, year, month int, centerID int64) *RecordsChangedMessage {
	return &RecordsChangedMessage{
		Entity:    entity,
		Action:    action,
		Year:      year,
		Month:     month,
		CenterID:  centerID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordsChangedFromJSON creates a message from JSON bytes
func RecordsChangedFromJSON(data []byte) (*RecordsChangedMessage, error) {
	var msg RecordsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
