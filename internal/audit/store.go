package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/taxestimator-api/internal/db"
)

// PGStore writes audit entries to the audit_logs table.
type PGStore struct {
	DB db.DBTX
}

const insertAuditLog = `INSERT INTO audit_logs
	(actor_kind, actor_user_id, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Insert persists e.
func (s PGStore) Insert(ctx context.Context, e Entry) error {
	var actor pgtype.UUID
	if e.ActorUserID != "" {
		actor, _ = db.ParseUUID(e.ActorUserID)
	}
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := s.DB.Exec(ctx, insertAuditLog,
		string(e.ActorKind), actor, e.Action, e.ResourceType, db.Text(e.ResourceID),
		e.Method, e.Path, db.Text(e.Route), int32(e.Status), db.Text(e.IP),
		db.Text(e.UserAgent), db.Text(e.RequestID), metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

const listAuditLogsByActor = `SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
	method, path, route, status, ip, user_agent, request_id, metadata, created_at
	FROM audit_logs WHERE actor_user_id = $1
	ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

// ListByActor returns the newest entries recorded for userID.
func (s PGStore) ListByActor(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	id, ok := db.ParseUUID(userID)
	if !ok {
		return []Entry{}, nil
	}
	rows, err := s.DB.Query(ctx, listAuditLogsByActor, id, int32(limit), int32(offset))
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e                                           Entry
			kind                                        string
			actor                                       pgtype.UUID
			resourceID, route, ip, userAgent, requestID pgtype.Text
			status                                      int32
			metadata                                    []byte
		)
		if err := rows.Scan(&e.ID, &kind, &actor, &e.Action, &e.ResourceType, &resourceID,
			&e.Method, &e.Path, &route, &status, &ip, &userAgent, &requestID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.ActorKind = ActorKind(kind)
		e.ActorUserID = db.UUIDString(actor)
		e.ResourceID = resourceID.String
		e.Route = route.String
		e.Status = int(status)
		e.IP = ip.String
		e.UserAgent = userAgent.String
		e.RequestID = requestID.String
		e.Metadata = metadata
		out = append(out, e)
	}
	return out, rows.Err()
}
