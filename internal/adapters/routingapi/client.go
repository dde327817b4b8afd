package routingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/pkg/httpclient"
)

var tracer = otel.Tracer("github.com/samirrijal/routefinder/internal/adapters/routingapi")

// Client implements ports.RoutingService against the shortest-path backend.
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// New creates a routing client rooted at baseURL.
func New(baseURL string, http *httpclient.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
	}
}

// Route calls GET /api/route. Start and end travel as lat1/lon1/lat2/lon2,
// waypoints as repeated via=lat,lon in order. Malformed features are decoded
// as unusable rather than failing the response; only a body that is not a
// JSON object is a transport error.
func (c *Client) Route(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
	ctx, span := tracer.Start(ctx, "routingapi.Route")
	defer span.End()
	span.SetAttributes(attribute.Int("route.waypoints", len(req.Waypoints)))

	body, err := c.http.Get(ctx, c.baseURL+"/api/route?"+EncodeQuery(req))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: route: %v", domain.ErrTransport, err)
	}

	var resp domain.RouteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		span.SetStatus(codes.Error, "decode")
		return nil, fmt.Errorf("%w: decode route response: %v", domain.ErrTransport, err)
	}

	span.SetAttributes(attribute.Int("route.features", len(resp.Features)))
	return &resp, nil
}

// EncodeQuery renders req as the backend's query string. Parameter order is fixed.
func EncodeQuery(req domain.RouteRequest) string {
	var b strings.Builder
	add := func(key string, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}

	add("lat1", formatCoord(req.Start.Lat))
	add("lon1", formatCoord(req.Start.Lon))
	add("lat2", formatCoord(req.End.Lat))
	add("lon2", formatCoord(req.End.Lon))
	for _, wp := range req.Waypoints {
		add("via", wp.String())
	}
	return b.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
