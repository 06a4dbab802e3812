package models

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for LedgerEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type LedgerEventType string

const (
	LedgerEventPurchaseOrderCreated LedgerEventType = "PURCHASE_ORDER_CREATED"
	LedgerEventInwardCreated        LedgerEventType = "INWARD_CREATED"
	LedgerEventGRNPosted            LedgerEventType = "GRN_POSTED"
	LedgerEventTransferInitiated    LedgerEventType = "TRANSFER_INITIATED"
	LedgerEventTransferCompleted    LedgerEventType = "TRANSFER_COMPLETED"
	LedgerEventWasteRecorded        LedgerEventType = "WASTE_RECORDED"
	LedgerEventStockAdjusted        LedgerEventType = "STOCK_ADJUSTED"
	LedgerEventOutwardIssued        LedgerEventType = "OUTWARD_ISSUED"
	LedgerEventOutwardReversed      LedgerEventType = "OUTWARD_REVERSED"
	LedgerEventSampleConverted      LedgerEventType = "SAMPLE_CONVERTED"
)

// LedgerEvent is the transactional outbox row written next to every ledger change.
// Publishing happens after commit via workflow.OutboxDispatcher.
type LedgerEvent struct {
	ID               int             `gorm:"primary_key;index:idx_ledger_outbox_dispatch,priority:3" json:"id"`
	EventId          string          `gorm:"size:64;not null;uniqueIndex" json:"eventId"`
	EventType        LedgerEventType `gorm:"size:40;not null;index" json:"eventType"`
	ReferenceType    string          `gorm:"size:40;not null" json:"referenceType"`
	ReferenceNumber  string          `gorm:"size:64;not null;index" json:"referenceNumber"`
	Payload          []byte          `gorm:"type:blob" json:"payload"`
	CorrelationId    string          `gorm:"size:64;index" json:"correlationId"`
	PublishStatus    string          `gorm:"size:20;index;not null;default:'PENDING';index:idx_ledger_outbox_dispatch,priority:1" json:"publishStatus"`
	PublishedAt      *time.Time      `gorm:"index" json:"publishedAt"`
	PubSubMessageId  *string         `gorm:"size:255" json:"pubsubMessageId"`
	PublishAttempts  int             `gorm:"not null;default:0" json:"publishAttempts"`
	NextAttemptAt    *time.Time      `gorm:"index;index:idx_ledger_outbox_dispatch,priority:2" json:"nextAttemptAt"`
	LockedAt         *time.Time      `gorm:"index" json:"lockedAt"`
	LockedBy         *string         `gorm:"size:100" json:"lockedBy"`
	LastPublishError *string         `gorm:"type:text" json:"lastPublishError"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func ConvertToLedgerEventMessage(record LedgerEvent) config.LedgerEventMessage {
	return config.LedgerEventMessage{
		ID:              record.ID,
		EventId:         record.EventId,
		EventType:       string(record.EventType),
		ReferenceType:   record.ReferenceType,
		ReferenceNumber: record.ReferenceNumber,
		OccurredAt:      record.CreatedAt,
		Payload:         record.Payload,
		CorrelationId:   record.CorrelationId,
	}
}

// recordLedgerEvent writes the outbox row inside tx so it commits or rolls back with the change.
func recordLedgerEvent[T any](ctx context.Context, tx *gorm.DB, eventType LedgerEventType, referenceType string, referenceNumber string, payload T) error {
	data, err := utils.MarshalToJSON(payload)
	if err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	event := LedgerEvent{
		EventId:         uuid.NewString(),
		EventType:       eventType,
		ReferenceType:   referenceType,
		ReferenceNumber: referenceNumber,
		Payload:         data,
		CorrelationId:   correlationId,
		PublishStatus:   OutboxPublishStatusPending,
	}
	return tx.WithContext(ctx).Create(&event).Error
}

func GetLedgerEvent(ctx context.Context, id int) (*LedgerEvent, error) {
	return utils.FetchModelWhere[LedgerEvent](ctx, config.GetDB(), "LedgerEvent", strconv.Itoa(id), "id = ?", []any{id})
}

func ListLedgerEvents(ctx context.Context, publishStatus string) ([]LedgerEvent, error) {
	filters := map[string]any{}
	if publishStatus != "" {
		filters["publish_status"] = publishStatus
	}
	return utils.ListModels[LedgerEvent](ctx, config.GetDB(), filters)
}

// RequeueLedgerEvent resets a FAILED or DEAD row so the dispatcher picks it up again.
func RequeueLedgerEvent(ctx context.Context, id int) (*LedgerEvent, error) {
	db := config.GetDB()
	event, err := GetLedgerEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.PublishStatus == OutboxPublishStatusSent {
		return nil, utils.NewConflictError("ledger event %d was already published", id)
	}
	if event.PublishStatus == OutboxPublishStatusProcessing {
		return nil, utils.NewConflictError("ledger event %d is being published", id)
	}
	now := time.Now().UTC()
	err = db.WithContext(ctx).Model(&LedgerEvent{}).
		Where("id = ? AND publish_status IN ?", id, []string{OutboxPublishStatusFailed, OutboxPublishStatusDead, OutboxPublishStatusPending}).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusPending,
			"publish_attempts": 0,
			"next_attempt_at":  now,
			"locked_at":        nil,
			"locked_by":        nil,
		}).Error
	if err != nil {
		config.LogError(config.GetLogger(), "LedgerEvent", "RequeueLedgerEvent", "Error requeueing ledger event", id, err)
		return nil, err
	}
	return GetLedgerEvent(ctx, id)
}
