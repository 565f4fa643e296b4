package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"casedesk/internal/database"
	"casedesk/internal/util"
)

type EventType string

const (
	EventTypeUserCreate     EventType = "user.create"
	EventTypeUserUpdate     EventType = "user.update"
	EventTypeUserActivate   EventType = "user.activate"
	EventTypeUserDeactivate EventType = "user.deactivate"
	EventTypeUserDelete     EventType = "user.delete"

	EventTypeGroupCreate        EventType = "group.create"
	EventTypeGroupUpdate        EventType = "group.update"
	EventTypeGroupDelete        EventType = "group.delete"
	EventTypeGroupMembersUpdate EventType = "group.members_update"

	EventTypeOrganisationCreate        EventType = "organisation.create"
	EventTypeOrganisationUpdate        EventType = "organisation.update"
	EventTypeOrganisationDelete        EventType = "organisation.delete"
	EventTypeOrganisationMembersUpdate EventType = "organisation.members_update"
)

type Store interface {
	CreateAuditEvent(ctx context.Context, params database.CreateAuditEventParams) (database.AuditEvent, error)
}

type Auditor struct {
	logger *slog.Logger
	store  Store
}

func NewAuditor(logger *slog.Logger, store Store) Auditor {
	return Auditor{logger: logger, store: store}
}

type LogEventParams struct {
	ActorID util.Optional[int64]
	Type    EventType
	Message string
	Data    map[string]any
}

// LogEvent persists an administrative action for later review. Failures are
// logged but never abort the action itself.
func (a *Auditor) LogEvent(ctx context.Context, params LogEventParams) error {
	data, err := json.Marshal(params.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event data: %w", err)
	}

	if _, err = a.store.CreateAuditEvent(ctx, database.CreateAuditEventParams{
		ActorID:   params.ActorID,
		EventType: string(params.Type),
		Message:   params.Message,
		Data:      data,
	}); err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	a.logger.InfoContext(ctx, "audit event",
		slog.String("event_type", string(params.Type)),
		slog.String("message", params.Message),
	)
	return nil
}
