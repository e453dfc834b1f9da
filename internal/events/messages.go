// Package events publishes user activity (sign-ins, ledger changes) to an
// AMQP topic exchange for downstream consumers.
package events

import (
	"encoding/json"
	"time"
)

// Kind is the routing key of an activity message.
type Kind string

const (
	UserLogin          Kind = "user.login"
	UserRegister       Kind = "user.register"
	UserLogout         Kind = "user.logout"
	CategoryCreated    Kind = "category.created"
	CategoryUpdated    Kind = "category.updated"
	CategoryDeleted    Kind = "category.deleted"
	TransactionCreated Kind = "transaction.created"
	TransactionUpdated Kind = "transaction.updated"
	TransactionDeleted Kind = "transaction.deleted"
)

// ActivityMessage describes one thing a user did.
type ActivityMessage struct {
	Kind      Kind      `json:"kind"`
	EntityID  string    `json:"entity_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewActivityMessage(kind Kind, entityID, userID string) ActivityMessage {
	return ActivityMessage{
		Kind:      kind,
		EntityID:  entityID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (m ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ActivityMessageFromJSON(data []byte) (ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ActivityMessage{}, err
	}
	return msg, nil
}
