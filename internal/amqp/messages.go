package amqp

import (
	"encoding/json"
	"time"
)

// ReceiptJobMessage asks the worker to run extraction for an uploaded receipt.
// The worker fetches the full record from the database by ID.
type ReceiptJobMessage struct {
	ReceiptID  string    `json:"receipt_id"`
	StorageKey string    `json:"storage_key"`
	FileType   string    `json:"file_type"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewReceiptJobMessage(receiptID, storageKey, fileType string) *ReceiptJobMessage {
	return &ReceiptJobMessage{
		ReceiptID:  receiptID,
		StorageKey: storageKey,
		FileType:   fileType,
		Timestamp:  time.Now(),
	}
}

func (m *ReceiptJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReceiptJobMessageFromJSON(data []byte) (*ReceiptJobMessage, error) {
	var msg ReceiptJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RecordChangeMessage tells the backup worker a subscription row changed.
// Only ID and version travel on the wire, the worker reads the row itself.
type RecordChangeMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangeMessage(id, version int64, op string) *RecordChangeMessage {
	return &RecordChangeMessage{
		ID:        id,
		Version:   version,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage announces an upcoming payment inside its reminder window.
type ReminderMessage struct {
	SubscriptionID string    `json:"subscription_id"`
	Name           string    `json:"name"`
	NextPayment    string    `json:"next_payment"`
	DaysLeft       int       `json:"days_left"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewReminderMessage(subscriptionID, name, nextPayment string, daysLeft int) *ReminderMessage {
	return &ReminderMessage{
		SubscriptionID: subscriptionID,
		Name:           name,
		NextPayment:    nextPayment,
		DaysLeft:       daysLeft,
		Timestamp:      time.Now(),
	}
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
