package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// viewETag is a weak validator built from the session ID and version. The
// version bumps on every transition, so equal tags mean equal views.
func viewETag(view domain.RouteView) string {
	return `W/"` + view.SessionID + "-" + strconv.FormatUint(view.Version, 10) + `"`
}

// notModified sets the ETag for view and reports whether the client's
// If-None-Match already names it; the caller then replies 304.
func notModified(c *fiber.Ctx, view domain.RouteView) bool {
	etag := viewETag(view)
	c.Set(fiber.HeaderETag, etag)
	return c.Get(fiber.HeaderIfNoneMatch) == etag
}
