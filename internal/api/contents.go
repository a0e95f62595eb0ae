package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-compositor/internal/audit"
	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/history"
)

// timingRequest is an animation window relative to the controller clock
// when the operation runs.
type timingRequest struct {
	DelayMS    uint64 `json:"delay_ms"`
	DurationMS uint64 `json:"duration_ms"`
}

// at converts the request into absolute controller ticks. Both ends
// saturate at math.MaxUint64, which the scheduler never reaches.
func (t timingRequest) at(now uint64) content.Timing {
	start := addSaturating(now, t.DelayMS)
	return content.Timing{Start: start, Finish: addSaturating(start, t.DurationMS)}
}

func addSaturating(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// details describes the request and its resolved ticks for the audit log.
func (t timingRequest) details(timing content.Timing) map[string]any {
	return map[string]any{
		"delay_ms":    t.DelayMS,
		"duration_ms": t.DurationMS,
		"start":       timing.Start,
		"finish":      timing.Finish,
	}
}

// readyRequest is the body of POST /contents/{id}/ready.
type readyRequest struct {
	// TimeoutMS overrides the configured default. 0 never expires.
	TimeoutMS *uint64 `json:"timeout_ms"`
}

// assignRequest is the body of POST /contents/{id}/assign.
type assignRequest struct {
	DisplayBuffer *uint32 `json:"display_buffer"`
	RenderOrder   int32   `json:"render_order"`
}

// contentResponse wraps a content snapshot with the controller clock.
type contentResponse struct {
	Content content.ContentInfo `json:"content"`
	Now     uint64              `json:"now"`
}

// handleListContents returns every registered content.
func (s *Server) handleListContents(w http.ResponseWriter, r *http.Request) {
	var (
		contents []content.ContentInfo
		now      uint64
	)
	err := s.runner.Do(r.Context(), func(c *content.Controller) error {
		contents = c.Contents()
		now = c.Now()
		return nil
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}
	if contents == nil {
		contents = []content.ContentInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"contents": contents,
		"count":    len(contents),
		"now":      now,
	})
}

// handleGetContent returns one content.
func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	s.respondContent(w, r, id, http.StatusOK, nil)
}

// handleContentHistory returns the recorded transitions of a content,
// newest first. The content does not need to be registered any more.
func (s *Server) handleContentHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeUnavailable(w, "history store not configured")
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	transitions, err := s.history.ListTransitions(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("listing content history failed", "content_id", id, "error", err)
		writeInternalError(w, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"content_id":  id,
		"transitions": transitions,
		"count":       len(transitions),
	})
}

// handleListCommands returns the scheduled scene state changes and removals.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	type commandJSON struct {
		Kind    string            `json:"kind"`
		Content content.ContentID `json:"content_id"`
		Target  string            `json:"target,omitempty"`
		Due     uint64            `json:"due"`
	}

	var commands []commandJSON
	err := s.runner.Do(r.Context(), func(c *content.Controller) error {
		for _, cmd := range c.PendingCommands() {
			out := commandJSON{Kind: cmd.Kind.String(), Content: cmd.Content, Due: cmd.Due}
			if cmd.Kind == content.CommandSceneStateChange {
				out.Target = cmd.Target.String()
			}
			commands = append(commands, out)
		}
		return nil
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}
	if commands == nil {
		commands = []commandJSON{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"commands": commands, "count": len(commands)})
}

// handleRequestReady asks the provider to make a content ready.
func (s *Server) handleRequestReady(w http.ResponseWriter, r *http.Request) {
	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	var req readyRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	timeout := s.readyTimeout
	if req.TimeoutMS != nil {
		timeout = *req.TimeoutMS
	}

	ok = s.respondContent(w, r, id, http.StatusAccepted, func(c *content.Controller) error {
		return c.RequestReady(id, timeout)
	})
	if ok {
		s.auditLog(r, "ready", audit.EntityContent, formatID(id), map[string]any{"timeout_ms": timeout})
	}
}

// handleShow schedules a content to be rendered.
func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	s.timedOperation(w, r, "show", (*content.Controller).Show)
}

// handleHide schedules a shown content back to ready.
func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	s.timedOperation(w, r, "hide", (*content.Controller).Hide)
}

// handleRelease returns a content to available.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.timedOperation(w, r, "release", (*content.Controller).Release)
}

// handleAcceptStopOffer accepts a provider's stop-offer request. The content
// disappears once the timing finishes, so the response carries no snapshot.
func (s *Server) handleAcceptStopOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	var req timingRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	var timing content.Timing
	err := s.runner.Do(r.Context(), func(c *content.Controller) error {
		timing = req.at(c.Now())
		return c.AcceptStopOffer(id, timing)
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}
	s.auditLog(r, "accept_stop_offer", audit.EntityContent, formatID(id), req.details(timing))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"content_id": id,
		"remove_at":  timing.Finish,
	})
}

// handleAssignDisplayBuffer maps a content's scene to an offscreen or
// framebuffer with a render order.
func (s *Server) handleAssignDisplayBuffer(w http.ResponseWriter, r *http.Request) {
	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DisplayBuffer == nil {
		writeBadRequest(w, "display_buffer is required")
		return
	}

	ok = s.respondContent(w, r, id, http.StatusOK, func(c *content.Controller) error {
		return c.AssignToDisplayBuffer(id, content.DisplayBufferID(*req.DisplayBuffer), req.RenderOrder)
	})
	if ok {
		s.auditLog(r, "assign", audit.EntityContent, formatID(id), map[string]any{
			"display_buffer": *req.DisplayBuffer,
			"render_order":   req.RenderOrder,
		})
	}
}

// timedOperation runs a show/hide/release style operation with a relative
// timing taken from the request body, and audits it as action.
func (s *Server) timedOperation(w http.ResponseWriter, r *http.Request, action string, op func(*content.Controller, content.ContentID, content.Timing) error) {
	id, ok := contentIDParam(w, r)
	if !ok {
		return
	}
	var req timingRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	var timing content.Timing
	ok = s.respondContent(w, r, id, http.StatusAccepted, func(c *content.Controller) error {
		timing = req.at(c.Now())
		return op(c, id, timing)
	})
	if ok {
		s.auditLog(r, action, audit.EntityContent, formatID(id), req.details(timing))
	}
}

// respondContent runs op (if any) and then writes the content's snapshot,
// both in the same runner call. It reports whether both succeeded.
func (s *Server) respondContent(w http.ResponseWriter, r *http.Request, id content.ContentID, status int, op func(*content.Controller) error) bool {
	var resp contentResponse
	err := s.runner.Do(r.Context(), func(c *content.Controller) error {
		if op != nil {
			if err := op(c); err != nil {
				return err
			}
		}
		info, err := c.Content(id)
		if err != nil {
			return err
		}
		resp = contentResponse{Content: info, Now: c.Now()}
		return nil
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return false
	}
	writeJSON(w, status, resp)
	return true
}

func formatID[T ~uint32 | ~uint64](id T) string {
	return strconv.FormatUint(uint64(id), 10)
}

// contentIDParam parses the {id} URL parameter, writing a 400 on failure.
func contentIDParam(w http.ResponseWriter, r *http.Request) (content.ContentID, bool) {
	id, err := parseUintParam(r, "id")
	if err != nil || id == uint64(content.InvalidContentID) {
		writeBadRequest(w, "invalid content ID")
		return 0, false
	}
	return content.ContentID(id), true
}

func parseUintParam(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an unsigned integer", errValidation, name)
	}
	return v, nil
}

// decodeBody decodes a required JSON body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody where an empty body keeps the zero value.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
