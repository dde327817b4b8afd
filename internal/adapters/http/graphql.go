package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to the session manager.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ResolvedPlace",
		Fields: graphql.Fields{
			"query":        &graphql.Field{Type: graphql.String},
			"role":         &graphql.Field{Type: graphql.String},
			"point":        &graphql.Field{Type: geoPointType},
			"display_name": &graphql.Field{Type: graphql.String},
		},
	})

	routeSetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteSet",
		Fields: graphql.Fields{
			"candidate_polylines": &graphql.Field{Type: graphql.NewList(graphql.NewList(geoPointType))},
			"source_features":     &graphql.Field{Type: graphql.NewList(graphql.Int)},
			"lengths_meters":      &graphql.Field{Type: graphql.NewList(graphql.Float)},
			"best_index":          &graphql.Field{Type: graphql.Int},
			"selected_index":      &graphql.Field{Type: graphql.Int},
			"distance_meters":     &graphql.Field{Type: graphql.Float},
			"travel_time_seconds": &graphql.Field{Type: graphql.Float},
			"bounds":              &graphql.Field{Type: boundsType},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteView",
		Fields: graphql.Fields{
			"session_id":        &graphql.Field{Type: graphql.String},
			"version":           &graphql.Field{Type: graphql.Int},
			"state":             &graphql.Field{Type: graphql.String},
			"route_set":         &graphql.Field{Type: routeSetType},
			"places":            &graphql.Field{Type: graphql.NewList(placeType)},
			"dropped_waypoints": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"error_kind":        &graphql.Field{Type: graphql.String},
			"error_message":     &graphql.Field{Type: graphql.String},
		},
	})

	placeArgs := graphql.FieldConfigArgument{
		"start":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"end":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"waypoints": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
	}

	getSession := func(p graphql.ResolveParams) (*usecases.RouteSession, error) {
		id, _ := p.Args["session_id"].(string)
		return deps.Sessions.Get(id)
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        viewType,
				Description: "Current view of a route session",
				Args: graphql.FieldConfigArgument{
					"session_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := getSession(p)
					if err != nil {
						return nil, err
					}
					return viewToMap(s.View()), nil
				},
			},
			"route": &graphql.Field{
				Type:        viewType,
				Description: "One-shot route lookup without a stored session",
				Args:        placeArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req, err := findRequestFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					view, err := deps.Sessions.Ephemeral().FindRoute(p.Context, req)
					if err != nil {
						return nil, err
					}
					return viewToMap(view), nil
				},
			},
		},
	})

	sessionArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createSession": &graphql.Field{
				Type:        viewType,
				Description: "Create an idle route session",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return viewToMap(deps.Sessions.Create().View()), nil
				},
			},
			"findRoute": &graphql.Field{
				Type:        viewType,
				Description: "Run one route-finding attempt; failures are reported in the view",
				Args: graphql.FieldConfigArgument{
					"session_id": sessionArg,
					"start":      placeArgs["start"],
					"end":        placeArgs["end"],
					"waypoints":  placeArgs["waypoints"],
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := getSession(p)
					if err != nil {
						return nil, err
					}
					req, err := findRequestFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					view, err := s.FindRoute(p.Context, req)
					if errors.Is(err, domain.ErrEmptyQuery) || errors.Is(err, domain.ErrAttemptInFlight) {
						return nil, err
					}
					return viewToMap(view), nil
				},
			},
			"selectRoute": &graphql.Field{
				Type:        viewType,
				Description: "Select another candidate of the current route set",
				Args: graphql.FieldConfigArgument{
					"session_id": sessionArg,
					"index":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := getSession(p)
					if err != nil {
						return nil, err
					}
					view, err := s.Reselect(p.Context, p.Args["index"].(int))
					if err != nil {
						return nil, err
					}
					return viewToMap(view), nil
				},
			},
			"resetSession": &graphql.Field{
				Type:        viewType,
				Description: "Return a session to idle",
				Args: graphql.FieldConfigArgument{
					"session_id": sessionArg,
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := getSession(p)
					if err != nil {
						return nil, err
					}
					view, err := s.Reset(p.Context)
					if err != nil {
						return nil, err
					}
					return viewToMap(view), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func findRequestFromArgs(args map[string]interface{}) (usecases.FindRouteRequest, error) {
	start, _ := args["start"].(string)
	end, _ := args["end"].(string)
	req := usecases.FindRouteRequest{
		Start: domain.PlaceQuery(start),
		End:   domain.PlaceQuery(end),
	}
	if wps, ok := args["waypoints"].([]interface{}); ok {
		for _, w := range wps {
			if s, ok := w.(string); ok {
				req.Waypoints = append(req.Waypoints, domain.PlaceQuery(s))
			}
		}
	}
	return req, validateFindRequest(req)
}

// viewToMap converts a view to plain values for the default resolvers.
func viewToMap(v domain.RouteView) map[string]interface{} {
	m := map[string]interface{}{
		"session_id":    v.SessionID,
		"version":       int(v.Version),
		"state":         v.State.String(),
		"error_kind":    string(v.ErrorKind),
		"error_message": v.ErrorMessage,
	}

	places := make([]map[string]interface{}, 0, len(v.Places))
	for _, p := range v.Places {
		places = append(places, map[string]interface{}{
			"query":        string(p.Query),
			"role":         string(p.Role),
			"point":        pointToMap(p.Point),
			"display_name": p.DisplayName,
		})
	}
	m["places"] = places

	dropped := make([]string, 0, len(v.DroppedWaypoints))
	for _, q := range v.DroppedWaypoints {
		dropped = append(dropped, string(q))
	}
	m["dropped_waypoints"] = dropped

	if rs := v.RouteSet; rs != nil {
		lines := make([][]map[string]interface{}, len(rs.CandidatePolylines))
		for i, line := range rs.CandidatePolylines {
			pts := make([]map[string]interface{}, len(line))
			for j, pt := range line {
				pts[j] = pointToMap(pt)
			}
			lines[i] = pts
		}
		set := map[string]interface{}{
			"candidate_polylines": lines,
			"source_features":     rs.SourceFeatures,
			"lengths_meters":      rs.LengthsMeters,
			"best_index":          rs.BestIndex,
			"selected_index":      rs.SelectedIndex,
		}
		if rs.DistanceMeters != nil {
			set["distance_meters"] = *rs.DistanceMeters
		}
		if rs.TravelTimeSeconds != nil {
			set["travel_time_seconds"] = *rs.TravelTimeSeconds
		}
		if b := rs.Bounds; b != nil {
			set["bounds"] = map[string]interface{}{
				"min_lat": b.MinLat, "min_lon": b.MinLon,
				"max_lat": b.MaxLat, "max_lon": b.MaxLon,
			}
		}
		m["route_set"] = set
	}
	return m
}

func pointToMap(p domain.GeoPoint) map[string]interface{} {
	return map[string]interface{}{"lat": p.Lat, "lon": p.Lon}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
