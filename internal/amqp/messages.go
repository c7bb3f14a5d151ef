package amqp

import (
	"encoding/json"
	"time"
)

// Reasons carried by ScheduleRecomputedMessage.
const (
	ReasonBillingUpdated = "billing_updated"
	ReasonFixApplied     = "fix_applied"
	ReasonReconciled     = "reconciled"
	ReasonEntryRecorded  = "entry_recorded"
)

// ScheduleRecomputedMessage announces that scheduled pay dates changed.
// Consumers only use it to drop derived state; they reload from the store.
type ScheduleRecomputedMessage struct {
	Reason        string    `json:"reason"`
	InstrumentIDs []string  `json:"instrumentIds"`
	EntryCount    int       `json:"entryCount"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewScheduleRecomputedMessage(reason string, instrumentIDs []string, entryCount int) *ScheduleRecomputedMessage {
	return &ScheduleRecomputedMessage{
		Reason:        reason,
		InstrumentIDs: instrumentIDs,
		EntryCount:    entryCount,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ScheduleRecomputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ScheduleRecomputedMessageFromJSON(data []byte) (*ScheduleRecomputedMessage, error) {
	var msg ScheduleRecomputedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
