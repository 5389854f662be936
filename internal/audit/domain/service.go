package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/samda/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	ObjectType string
	ObjectID   string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service is a best-effort sink. Record failures are logged and returned but
// callers never undo business changes because of them.
type Service interface {
	// Record writes one entry. An empty actor falls back to the actor on ctx,
	// then to "system".
	Record(ctx context.Context, actor, action, objectType, objectID, message string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidObjectType = errors.New("invalid_object_type")
)
