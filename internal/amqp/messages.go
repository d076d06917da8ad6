package amqp

import (
	"encoding/json"
	"time"
)

// LedgerImportedMessage announces a new current ledger. It carries only the
// import reference; the worker reloads the records from storage.
type LedgerImportedMessage struct {
	ImportID  int64     `json:"import_id"`
	Records   int       `json:"records"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerImportedMessage creates a message stamped with the current time.
func NewLedgerImportedMessage(importID int64, records int, source string) *LedgerImportedMessage {
	return &LedgerImportedMessage{
		ImportID:  importID,
		Records:   records,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerImportedMessageFromJSON decodes a message body.
func LedgerImportedMessageFromJSON(data []byte) (*LedgerImportedMessage, error) {
	var msg LedgerImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
