package api

import (
	"fmt"
	"net/http"

	"github.com/nerrad567/gray-logic-compositor/internal/audit"
	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

// sizeRequest is the body of PUT /categories/{id}/size.
type sizeRequest struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	timingRequest
}

// handleListCategories returns the configured categories and their contents.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	var categories []content.CategoryInfo
	err := s.runner.Do(r.Context(), func(c *content.Controller) error {
		categories = c.Categories()
		return nil
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}
	if categories == nil {
		categories = []content.CategoryInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"count":      len(categories),
	})
}

// handleSetCategorySize resizes a category and notifies every assigned
// provider. Contents that rejected the new size are reported as a 502; the
// stored size is updated regardless.
func (s *Server) handleSetCategorySize(w http.ResponseWriter, r *http.Request) {
	raw, err := parseUintParam(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid category ID")
		return
	}
	id := content.CategoryID(raw)

	var req sizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Width == 0 || req.Height == 0 {
		writeBadRequest(w, "width and height must be positive")
		return
	}

	var (
		info   content.CategoryInfo
		timing content.Timing
	)
	err = s.runner.Do(r.Context(), func(c *content.Controller) error {
		size := content.Size{Width: req.Width, Height: req.Height}
		timing = req.at(c.Now())
		if err := c.SetCategorySize(id, size, timing); err != nil {
			return err
		}
		for _, cat := range c.Categories() {
			if cat.ID == id {
				info = cat
				return nil
			}
		}
		return fmt.Errorf("category %d: %w", id, content.ErrUnknownCategory)
	})
	if err != nil {
		s.writeControllerError(w, r, err)
		return
	}

	details := req.details(timing)
	details["width"] = req.Width
	details["height"] = req.Height
	s.auditLog(r, "set_size", audit.EntityCategory, formatID(id), details)

	writeJSON(w, http.StatusOK, map[string]any{"category": info})
}
