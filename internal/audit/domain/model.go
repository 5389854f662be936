package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Audited actions.
const (
	ActionInvoiceIssued    = "INVOICE_ISSUED"
	ActionInvoiceVoided    = "INVOICE_VOIDED"
	ActionInvoiceDeleted   = "INVOICE_DELETED"
	ActionPaymentRecorded  = "PAYMENT_RECORDED"
	ActionPaymentAllocated = "PAYMENT_ALLOCATED"
	ActionReceiptIssued    = "RECEIPT_ISSUED"
	ActionCustomerDeleted  = "CUSTOMER_DELETED"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Actor      string            `gorm:"type:varchar(100);not null" json:"actor"`
	Action     string            `gorm:"type:varchar(50);not null;index" json:"action"`
	ObjectType string            `gorm:"type:varchar(50);not null" json:"object_type"`
	ObjectID   string            `gorm:"type:varchar(50);not null;index" json:"object_id"`
	Message    string            `gorm:"type:text" json:"message"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	RequestID  string            `gorm:"type:varchar(64)" json:"request_id,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
