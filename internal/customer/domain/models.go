package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Customer struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	Name                  string       `gorm:"type:varchar(200);not null;index" json:"name"`
	Email                 string       `gorm:"type:varchar(254)" json:"email,omitempty"`
	Phone                 string       `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Address               string       `gorm:"type:text" json:"address,omitempty"`
	TIN                   string       `gorm:"column:tin;type:varchar(50)" json:"tin,omitempty"`
	IsVATWithholdingAgent bool         `gorm:"column:is_vat_withholding_agent;not null" json:"is_vat_withholding_agent"`
	CreatedAt             time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time    `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
