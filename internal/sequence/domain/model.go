package domain

import (
	"fmt"
	"time"
)

// Sequence keys. One counter per issued document category.
const (
	KeyInvoiceVAT    = "INV_VAT"
	KeyInvoiceNonVAT = "INV_NONVAT"
	KeyReceipt       = "RECEIPT"
)

// Keys lists the categories the seed tool provisions.
var Keys = []string{KeyInvoiceVAT, KeyInvoiceNonVAT, KeyReceipt}

// NumberWidth is the zero padding of the numeric part of a document number.
const NumberWidth = 6

// Counter is the persistent numbering state of one category. NextNumber is
// the number the next allocation hands out.
type Counter struct {
	Key        string    `gorm:"column:seq_key;primaryKey;type:varchar(32)" json:"key"`
	Prefix     string    `gorm:"type:varchar(32);not null" json:"prefix"`
	NextNumber int64     `gorm:"column:next_number;not null" json:"next_number"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Counter) TableName() string { return "document_sequences" }

// FormatNumber renders prefix followed by n padded to NumberWidth digits.
func FormatNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, NumberWidth, n)
}
