package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/pkg/httpclient"
)

var tracer = otel.Tracer("github.com/samirrijal/routefinder/internal/adapters/nominatim")

// Geocoder implements ports.Geocoder against a Nominatim-compatible /search endpoint.
type Geocoder struct {
	baseURL string
	http    *httpclient.Client
}

// New creates a Geocoder. Nominatim's usage policy requires an identifying User-Agent.
func New(baseURL string, http *httpclient.Client) *Geocoder {
	return &Geocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
	}
}

// Search returns the raw matches for query. An empty list is a valid answer;
// transport failures and a body that is not a JSON array wrap
// domain.ErrTransport. A malformed single match is returned with empty fields.
func (g *Geocoder) Search(ctx context.Context, query string) ([]domain.GeocodeMatch, error) {
	ctx, span := tracer.Start(ctx, "nominatim.Search")
	defer span.End()

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)

	body, err := g.http.Get(ctx, g.baseURL+"/search?"+params.Encode())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: geocode: %v", domain.ErrTransport, err)
	}

	var matches []domain.GeocodeMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		span.SetStatus(codes.Error, "decode")
		return nil, fmt.Errorf("%w: decode geocoder response: %v", domain.ErrTransport, err)
	}

	span.SetAttributes(attribute.Int("geocode.matches", len(matches)))
	return matches, nil
}
