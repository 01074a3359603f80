package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the lifecycle state of a queue item
type ItemStatus string

// Possible item status values
const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// Operation describes how the originating source record changed
type Operation string

// Possible operation values
const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Priority determines claim ordering; higher priorities are claimed first,
// FIFO within a priority band.
type Priority string

// Possible priority values
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Common validation errors for QueueItem
var (
	ErrEmptyItemID          = errors.New("queue item ID cannot be empty")
	ErrEmptySourceType      = errors.New("queue item source type cannot be empty")
	ErrEmptySourceID        = errors.New("queue item source ID cannot be empty")
	ErrInvalidOperation     = errors.New("invalid queue item operation")
	ErrInvalidPriority      = errors.New("invalid queue item priority")
	ErrInvalidItemStatus    = errors.New("invalid queue item status")
	ErrInvalidTokenEstimate = errors.New("estimated tokens must be positive")
)

// QueueItem represents a single "generate embedding" unit of work.
// It tracks the originating source record, its claim ownership while
// processing, and its terminal outcome.
type QueueItem struct {
	ID              uuid.UUID         `json:"id"`
	SourceType      string            `json:"source_type"`
	SourceID        string            `json:"source_id"`
	Operation       Operation         `json:"operation"`
	Priority        Priority          `json:"priority"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	EstimatedTokens int               `json:"estimated_tokens"`
	ActualTokens    int               `json:"actual_tokens,omitempty"`
	Status          ItemStatus        `json:"status"`
	WorkerID        string            `json:"worker_id,omitempty"`
	ClaimedAt       *time.Time        `json:"claimed_at,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewQueueItem creates a new pending QueueItem for the given source record.
// It generates a new UUID for the item ID and sets the creation/update
// timestamps. Returns an error if validation fails.
func NewQueueItem(
	sourceType, sourceID string,
	op Operation,
	priority Priority,
	estimatedTokens int,
	metadata map[string]string,
) (*QueueItem, error) {
	item := &QueueItem{
		ID:              uuid.New(),
		SourceType:      sourceType,
		SourceID:        sourceID,
		Operation:       op,
		Priority:        priority,
		Metadata:        metadata,
		EstimatedTokens: estimatedTokens,
		Status:          ItemStatusPending,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the QueueItem has valid data.
// Returns an error if any field fails validation.
func (i *QueueItem) Validate() error {
	if i.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if i.SourceType == "" {
		return ErrEmptySourceType
	}

	if i.SourceID == "" {
		return ErrEmptySourceID
	}

	if !isValidOperation(i.Operation) {
		return ErrInvalidOperation
	}

	if !isValidPriority(i.Priority) {
		return ErrInvalidPriority
	}

	if !isValidItemStatus(i.Status) {
		return ErrInvalidItemStatus
	}

	if i.EstimatedTokens <= 0 {
		return ErrInvalidTokenEstimate
	}

	return nil
}

// Rank returns the claim ordering rank for the priority.
// Lower ranks are claimed first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// isValidOperation checks if the given operation is a valid Operation.
func isValidOperation(op Operation) bool {
	switch op {
	case OperationInsert, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}

// isValidPriority checks if the given priority is a valid Priority.
func isValidPriority(p Priority) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// isValidItemStatus checks if the given status is a valid ItemStatus.
func isValidItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusCompleted, ItemStatusFailed:
		return true
	default:
		return false
	}
}
