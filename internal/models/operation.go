package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smoocho/pos-terminal/internal/errors"
)

// EntityType identifies the collection an operation targets.
type EntityType string

const (
	EntityOrder         EntityType = "order"
	EntityInventoryItem EntityType = "inventory_item"
	EntityProduct       EntityType = "product"
	EntitySetting       EntityType = "setting"
)

// Action identifies the mutation an operation performs.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// OperationStatus tracks an operation through the queue.
// Transitions: pending -> processing -> completed | pending (retry) | failed.
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusProcessing OperationStatus = "processing"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
)

// Operation is a single pending mutation recorded while the terminal cannot
// confirm the write remotely. The payload is tagged by EntityType and decoded
// into the matching record type before apply, so a malformed or unknown
// payload fails validation instead of being trusted at runtime.
type Operation struct {
	ID         string          `json:"id"`
	EntityType EntityType      `json:"entityType"`
	Action     Action          `json:"action"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	DeviceID   string          `json:"deviceId"`
	UserID     string          `json:"userId"`
	RetryCount int             `json:"retryCount"`
	Status     OperationStatus `json:"status"`
	LastError  string          `json:"lastError,omitempty"`
}

// DeletePayload is the payload shape for delete operations: only the id of
// the record to remove.
type DeletePayload struct {
	ID string `json:"id"`
}

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityOrder, EntityInventoryItem, EntityProduct, EntitySetting:
		return true
	}
	return false
}

// ValidAction reports whether a is a known action.
func ValidAction(a Action) bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// NewOperationID builds a queue-unique id of the form
// <type>_<action>_<unix-millis>_<suffix>.
func NewOperationID(entityType EntityType, action Action, ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%d_%s", entityType, action, ts.UnixMilli(), suffix)
}

// NewOperation validates the inputs and builds a pending Operation.
func NewOperation(entityType EntityType, action Action, payload json.RawMessage, userID, deviceID string, ts time.Time) (*Operation, error) {
	if !ValidEntityType(entityType) {
		return nil, errors.New(errors.ErrValidation, fmt.Sprintf("unknown entity type %q", entityType))
	}
	if !ValidAction(action) {
		return nil, errors.New(errors.ErrUnsupportedAction, fmt.Sprintf("unknown action %q", action))
	}
	if len(payload) == 0 {
		return nil, errors.New(errors.ErrValidation, "operation payload is empty")
	}
	return &Operation{
		ID:         NewOperationID(entityType, action, ts),
		EntityType: entityType,
		Action:     action,
		Payload:    payload,
		Timestamp:  ts,
		DeviceID:   deviceID,
		UserID:     userID,
		RetryCount: 0,
		Status:     StatusPending,
	}, nil
}

// DecodePayload unmarshals the payload into the record type named by the
// operation's entity tag. Delete payloads decode to *DeletePayload regardless
// of entity type.
func (op *Operation) DecodePayload() (interface{}, error) {
	if op.Action == ActionDelete {
		var p DeletePayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return nil, errors.Wrap(errors.ErrValidation, "malformed delete payload", err)
		}
		if p.ID == "" {
			return nil, errors.New(errors.ErrValidation, "delete payload missing id")
		}
		return &p, nil
	}

	switch op.EntityType {
	case EntityOrder:
		var rec Order
		if err := json.Unmarshal(op.Payload, &rec); err != nil {
			return nil, errors.Wrap(errors.ErrValidation, "malformed order payload", err)
		}
		return &rec, nil
	case EntityInventoryItem:
		var rec InventoryItem
		if err := json.Unmarshal(op.Payload, &rec); err != nil {
			return nil, errors.Wrap(errors.ErrValidation, "malformed inventory payload", err)
		}
		return &rec, nil
	case EntityProduct:
		var rec Product
		if err := json.Unmarshal(op.Payload, &rec); err != nil {
			return nil, errors.Wrap(errors.ErrValidation, "malformed product payload", err)
		}
		return &rec, nil
	case EntitySetting:
		var rec Setting
		if err := json.Unmarshal(op.Payload, &rec); err != nil {
			return nil, errors.Wrap(errors.ErrValidation, "malformed setting payload", err)
		}
		return &rec, nil
	default:
		return nil, errors.New(errors.ErrValidation, fmt.Sprintf("unknown entity type %q", op.EntityType))
	}
}
