package service

import (
	"context"
	"encoding/json"
	"time"

	"academy/internal/apperror"
	"academy/internal/model"
	"academy/internal/repository"
	"academy/pkg/pagination"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// --- DTOs ---

type ActivityLogResponse struct {
	ID         string          `json:"id"`
	UserID     *uint           `json:"user_id"`
	UserRole   string          `json:"user_role"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// --- Interface ---

type ActivityService interface {
	// Record writes an activity entry. Failures are logged, never returned.
	Record(ctx context.Context, actor Actor, action, entityType, entityID string, details interface{})
	List(ctx context.Context, filter repository.ActivityFilter) ([]ActivityLogResponse, int64, error)
}

type activityService struct {
	repo repository.ActivityRepository
	log  *zap.Logger
}

func NewActivityService(repo repository.ActivityRepository, log *zap.Logger) ActivityService {
	return &activityService{repo: repo, log: log}
}

// --- Implementation ---

func (s *activityService) Record(ctx context.Context, actor Actor, action, entityType, entityID string, details interface{}) {
	entry := model.ActivityLog{
		UserRole:   actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if !actor.IsSystem() {
		id := actor.ID
		entry.UserID = &id
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err == nil {
			entry.Details = datatypes.JSON(raw)
		}
	}

	if err := s.repo.Log(ctx, &entry); err != nil {
		s.log.Warn("failed to write activity log",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func (s *activityService) List(ctx context.Context, filter repository.ActivityFilter) ([]ActivityLogResponse, int64, error) {
	p := pagination.Clamp(filter.Page, filter.Limit)
	filter.Page, filter.Limit = p.Page, p.Limit
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Persistence("list activity logs", err)
	}

	res := make([]ActivityLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, ActivityLogResponse{
			ID:         l.ID.String(),
			UserID:     l.UserID,
			UserRole:   l.UserRole,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			Details:    json.RawMessage(l.Details),
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		})
	}
	return res, total, nil
}
