package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/samda/pkg/db/pagination"
)

type ListCustomerRequest struct {
	pagination.Pagination
	Name string `form:"name"`
}

type ListCustomerFilter struct {
	Name string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name                  string `json:"name" validate:"required,max=200"`
	Email                 string `json:"email" validate:"omitempty,email,max=254"`
	Phone                 string `json:"phone" validate:"omitempty,max=50"`
	Address               string `json:"address"`
	TIN                   string `json:"tin" validate:"omitempty,max=50"`
	IsVATWithholdingAgent bool   `json:"is_vat_withholding_agent"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	// Delete refuses to remove a customer that invoices or payments still
	// reference.
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("customer_not_found")
	ErrCustomerInUse = errors.New("customer_in_use")
)
