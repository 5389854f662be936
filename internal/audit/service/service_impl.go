package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/samda/internal/audit/domain"
	"github.com/smallbiznis/samda/internal/audit/masking"
	"github.com/smallbiznis/samda/internal/auditcontext"
	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// payer and customer identifiers are kept out of the audit table
var maskedMetadataKeys = []string{"reference", "tin", "phone", "email"}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, actor, action, objectType, objectID, message string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	objectType = strings.TrimSpace(objectType)
	if objectType == "" {
		return auditdomain.ErrInvalidObjectType
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = auditcontext.ActorOrSystem(ctx)
	}

	var payload datatypes.JSONMap
	if masked := masking.MaskFields(metadata, maskedMetadataKeys...); len(masked) > 0 {
		payload = datatypes.JSONMap(masked)
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		Actor:      actor,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(objectID),
		Message:    message,
		Metadata:   payload,
		RequestID:  auditcontext.RequestIDFromContext(ctx),
		CreatedAt:  s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("object_type", objectType),
			zap.String("object_id", entry.ObjectID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	afterID, err := req.AfterID()
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     req.Action,
		ObjectType: req.ObjectType,
		ObjectID:   req.ObjectID,
		AfterID:    snowflake.ID(afterID),
		Limit:      limit + 1,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(l auditdomain.AuditLog) int64 { return l.ID.Int64() })
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: items}, nil
}
