package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
)

const (
	maxQueryLen  = 200
	maxWaypoints = 10
)

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID         string              `json:"id"`
	State      domain.SessionState `json:"state"`
	Version    uint64              `json:"version"`
	LastActive time.Time           `json:"last_active"`
}

type selectRequest struct {
	Index *int `json:"index"`
}

// validateFindRequest enforces the transport-level limits. Empty start/end is
// left to the session so it is counted as a rejected trigger.
func validateFindRequest(req usecases.FindRouteRequest) error {
	if len(req.Start) > maxQueryLen || len(req.End) > maxQueryLen {
		return fmt.Errorf("place names are limited to %d characters", maxQueryLen)
	}
	if len(req.Waypoints) > maxWaypoints {
		return fmt.Errorf("at most %d waypoints are allowed", maxWaypoints)
	}
	for _, wp := range req.Waypoints {
		if len(wp) > maxQueryLen {
			return fmt.Errorf("place names are limited to %d characters", maxQueryLen)
		}
	}
	return nil
}

// lookupSession resolves the :id param or writes a 404.
func lookupSession(c *fiber.Ctx, deps *Dependencies) (*usecases.RouteSession, error) {
	s, err := deps.Sessions.Get(c.Params("id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, errNotFound(c, "session not found")
	}
	return s, err
}

// CreateSessionHandler registers a new idle session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := deps.Sessions.Create()
		c.Location("/v1/sessions/" + s.ID())
		return c.Status(fiber.StatusCreated).JSON(s.View())
	}
}

// ListSessionsHandler returns a page of session summaries.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := parsePagination(c, 50, 200)

		sessions := deps.Sessions.List()
		pg := Pagination{Offset: offset, Limit: limit, Total: len(sessions)}
		start, end := pageBounds(pg)

		out := make([]SessionSummary, 0, end-start)
		for _, s := range sessions[start:end] {
			v := s.View()
			out = append(out, SessionSummary{
				ID:         v.SessionID,
				State:      v.State,
				Version:    v.Version,
				LastActive: s.LastActive(),
			})
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: out, Pagination: pg})
	}
}

// GetSessionHandler returns the current view, honouring If-None-Match.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := lookupSession(c, deps)
		if s == nil {
			return err
		}

		view := s.View()
		if notModified(c, view) {
			return c.SendStatus(fiber.StatusNotModified)
		}
		return c.JSON(view)
	}
}

// DeleteSessionHandler drops a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Delete(c.Params("id")); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return errNotFound(c, "session not found")
			}
			return errInternal(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// FindRouteHandler runs one attempt and returns the final view. A Failed
// view is still a 200: the failure is part of the session state.
func FindRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := lookupSession(c, deps)
		if s == nil {
			return err
		}

		var req usecases.FindRouteRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validateFindRequest(req); err != nil {
			return errBadRequest(c, err.Error())
		}

		view, err := s.FindRoute(c.UserContext(), req)
		switch {
		case errors.Is(err, domain.ErrEmptyQuery):
			return errBadRequest(c, err.Error())
		case errors.Is(err, domain.ErrAttemptInFlight):
			return errConflict(c, err.Error())
		}
		return c.JSON(view)
	}
}

// SelectRouteHandler makes another candidate the selected one.
func SelectRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := lookupSession(c, deps)
		if s == nil {
			return err
		}

		var req selectRequest
		if err := c.BodyParser(&req); err != nil || req.Index == nil {
			return errBadRequest(c, "index is required")
		}

		view, err := s.Reselect(c.UserContext(), *req.Index)
		switch {
		case errors.Is(err, domain.ErrNotReady):
			return errConflict(c, err.Error())
		case err != nil:
			return errRoute(c, err)
		}
		return c.JSON(view)
	}
}

// ResetSessionHandler returns the session to idle.
func ResetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := lookupSession(c, deps)
		if s == nil {
			return err
		}

		view, err := s.Reset(c.UserContext())
		if errors.Is(err, domain.ErrAttemptInFlight) {
			return errConflict(c, err.Error())
		}
		return c.JSON(view)
	}
}

// RouteHandler is the stateless one-shot lookup:
// GET /v1/route?start=Paris&end=Berlin&via=Frankfurt&via=Dresden
func RouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := usecases.FindRouteRequest{
			Start: domain.PlaceQuery(c.Query("start")),
			End:   domain.PlaceQuery(c.Query("end")),
		}
		for _, v := range c.Context().QueryArgs().PeekMulti("via") {
			req.Waypoints = append(req.Waypoints, domain.PlaceQuery(v))
		}

		if req.Start.Empty() || req.End.Empty() {
			return errBadRequest(c, "start and end query parameters are required")
		}
		if err := validateFindRequest(req); err != nil {
			return errBadRequest(c, err.Error())
		}

		view, err := deps.Sessions.Ephemeral().FindRoute(c.UserContext(), req)
		if err != nil {
			return errRoute(c, err)
		}
		return c.JSON(view)
	}
}
