package amqp

import (
	"encoding/json"
	"time"
)

// EntryMessage carries one raw expense entry line to be parsed and stored by
// the worker.
type EntryMessage struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

func NewEntryMessage(text string) *EntryMessage {
	return &EntryMessage{Text: text, ReceivedAt: time.Now()}
}

func (m *EntryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryMessageFromJSON(data []byte) (*EntryMessage, error) {
	var msg EntryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SyncMessage asks the worker to mirror one stored expense. It carries only
// the ID; the worker fetches the row itself.
type SyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(id int64) *SyncMessage {
	return &SyncMessage{ID: id, Timestamp: time.Now()}
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
