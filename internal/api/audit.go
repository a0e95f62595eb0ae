package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-compositor/internal/audit"
)

// auditChanSize is the buffer of the audit writer. Entries beyond it are
// dropped so a slow disk never holds up a control request.
const auditChanSize = 256

// auditLog queues an audit entry for the request's subject. It is a no-op
// without an audit repository.
func (s *Server) auditLog(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.auditCh == nil {
		return
	}

	entry := &audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     audit.SourceAPI,
		Details:    details,
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		entry.UserID = claims.Subject
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit queue full, dropping entry",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
		)
	}
}

// drainAuditLog writes queued entries one at a time. Once ctx is cancelled
// it writes whatever is still queued and returns.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAuditEntry(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAuditEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAuditEntry(entry *audit.AuditLog) {
	if err := s.audit.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}

// handleListAuditLogs returns audit entries, newest first.
//
// Query parameters:
//   - action: e.g. show, release, set_size
//   - entity_type: content, category, display or link
//   - entity_id: a specific entity
//   - user_id: the JWT subject that issued the request
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
