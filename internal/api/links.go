package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-compositor/internal/audit"
	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

// offscreenLinkRequest is the body of POST /links/offscreen-buffer.
type offscreenLinkRequest struct {
	DisplayBuffer   uint32            `json:"display_buffer"`
	ConsumerContent content.ContentID `json:"consumer_content"`
	ConsumerID      uint32            `json:"consumer_id"`
}

// dataLinkRequest is the body of POST /links/data.
type dataLinkRequest struct {
	ProviderContent content.ContentID `json:"provider_content"`
	ProviderID      uint32            `json:"provider_id"`
	ConsumerContent content.ContentID `json:"consumer_content"`
	ConsumerID      uint32            `json:"consumer_id"`
}

// handleLinkOffscreenBuffer requests an offscreen buffer link. The outcome
// arrives asynchronously as an "offscreen_buffer_linked" event.
func (s *Server) handleLinkOffscreenBuffer(w http.ResponseWriter, r *http.Request) {
	var req offscreenLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.runner.Do(r.Context(), func(c *content.Controller) error {
		return c.LinkOffscreenBuffer(
			content.DisplayBufferID(req.DisplayBuffer),
			req.ConsumerContent,
			content.DataConsumerID(req.ConsumerID),
		)
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}
	s.auditLog(r, "link_offscreen_buffer", audit.EntityContent, formatID(req.ConsumerContent), map[string]any{
		"display_buffer": req.DisplayBuffer,
		"consumer_id":    req.ConsumerID,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "requested"})
}

// handleLinkData requests a data link between two contents' scenes. The
// outcome arrives asynchronously as a "data_linked" event.
func (s *Server) handleLinkData(w http.ResponseWriter, r *http.Request) {
	var req dataLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.runner.Do(r.Context(), func(c *content.Controller) error {
		return c.LinkData(
			req.ProviderContent,
			content.DataProviderID(req.ProviderID),
			req.ConsumerContent,
			content.DataConsumerID(req.ConsumerID),
		)
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}
	s.auditLog(r, "link_data", audit.EntityContent, formatID(req.ConsumerContent), map[string]any{
		"provider_content": req.ProviderContent,
		"provider_id":      req.ProviderID,
		"consumer_id":      req.ConsumerID,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "requested"})
}

// handleSetClearColor sets the clear colour of a display buffer.
func (s *Server) handleSetClearColor(w http.ResponseWriter, r *http.Request) {
	display, err := parseUintParam(r, "display")
	if err != nil || display > uint64(^uint32(0)) {
		writeBadRequest(w, "invalid display ID")
		return
	}
	buffer, err := parseUintParam(r, "buffer")
	if err != nil || buffer > uint64(^uint32(0)) {
		writeBadRequest(w, "invalid buffer ID")
		return
	}

	var color content.Color
	if !decodeBody(w, r, &color) {
		return
	}
	for _, v := range []float32{color.R, color.G, color.B, color.A} {
		if v < 0 || v > 1 {
			writeBadRequest(w, "color components must be within [0,1]")
			return
		}
	}

	err = s.runner.Do(r.Context(), func(c *content.Controller) error {
		return c.SetDisplayBufferClearColor(content.DisplayID(display), content.DisplayBufferID(buffer), color)
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}
	s.auditLog(r, "set_clear_color", audit.EntityDisplay, formatID(display), map[string]any{
		"buffer": buffer,
		"color":  []float32{color.R, color.G, color.B, color.A},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"display": display,
		"buffer":  buffer,
		"color":   color,
	})
}
