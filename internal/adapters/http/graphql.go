package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/gymmap/internal/core/domain"
	"github.com/samirrijal/gymmap/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Position",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	boundaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Boundary",
		Fields: graphql.Fields{
			"swlat": &graphql.Field{Type: graphql.Float},
			"swlng": &graphql.Field{Type: graphql.Float},
			"nelat": &graphql.Field{Type: graphql.Float},
			"nelng": &graphql.Field{Type: graphql.Float},
		},
	})

	gymType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Gym",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"name":     &graphql.Field{Type: graphql.String},
			"address":  &graphql.Field{Type: graphql.String},
			"phone":    &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: positionType},
			"tags":     &graphql.Field{Type: graphql.NewList(graphql.String)},
			"distance": &graphql.Field{Type: graphql.Float},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"device_id":       &graphql.Field{Type: graphql.String},
			"phase":           &graphql.Field{Type: graphql.String},
			"center":          &graphql.Field{Type: positionType},
			"level":           &graphql.Field{Type: graphql.Int},
			"bounds":          &graphql.Field{Type: boundaryType},
			"loading":         &graphql.Field{Type: graphql.Boolean},
			"initialized":     &graphql.Field{Type: graphql.Boolean},
			"live_position":   &graphql.Field{Type: positionType},
			"markers":         &graphql.Field{Type: graphql.Int},
			"selected_gym_id": &graphql.Field{Type: graphql.String},
			"created_at":      &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "List open map sessions",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.List(), nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a map session by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Get(p.Args["id"].(string))
				},
			},
			"gymsInBounds": &graphql.Field{
				Type:        graphql.NewList(gymType),
				Description: "Gyms inside a viewport boundary, closest to its center first",
				Args: graphql.FieldConfigArgument{
					"swlat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"swlng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"nelat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"nelng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: usecases.DefaultGymLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b := domain.Boundary{
						SouthWestLat: p.Args["swlat"].(float64),
						SouthWestLng: p.Args["swlng"].(float64),
						NorthEastLat: p.Args["nelat"].(float64),
						NorthEastLng: p.Args["nelng"].(float64),
					}
					return deps.Gyms.FindInBounds(p.Context, b, p.Args["limit"].(int))
				},
			},
			"gymsNearby": &graphql.Field{
				Type:        graphql.NewList(gymType),
				Description: "Find gyms near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pos := domain.Position{
						Latitude:  p.Args["lat"].(float64),
						Longitude: p.Args["lon"].(float64),
					}
					return deps.Gyms.FindNear(p.Context, pos, p.Args["radius"].(float64), p.Args["limit"].(int))
				},
			},
			"searchGyms": &graphql.Field{
				Type:        graphql.NewList(gymType),
				Description: "Search gyms by name (fuzzy matching)",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Gyms.Search(p.Context, p.Args["query"].(string), p.Args["limit"].(int))
				},
			},
			"gym": &graphql.Field{
				Type:        gymType,
				Description: "Get a gym by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Gyms.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"lastPosition": &graphql.Field{
				Type:        positionType,
				Description: "Last known position of a device",
				Args: graphql.FieldConfigArgument{
					"device_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Positions == nil {
						return nil, errors.New("position cache not available")
					}
					return deps.Positions.Last(p.Context, p.Args["device_id"].(string))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"openSession": &graphql.Field{
				Type:        sessionType,
				Description: "Mount a map session for a device",
				Args: graphql.FieldConfigArgument{
					"device_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Open(p.Context, p.Args["device_id"].(string))
				},
			},
			"panSession": &graphql.Field{
				Type:        sessionType,
				Description: "Drag a session's map by dx, dy pixels",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"dx": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"dy": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Pan(p.Context, p.Args["id"].(string), p.Args["dx"].(float64), p.Args["dy"].(float64))
				},
			},
			"zoomSession": &graphql.Field{
				Type:        sessionType,
				Description: "Set a session's map level",
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"level": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Zoom(p.Context, p.Args["id"].(string), p.Args["level"].(int))
				},
			},
			"clickMarker": &graphql.Field{
				Type:        sessionType,
				Description: "Click a gym marker inside a session",
				Args: graphql.FieldConfigArgument{
					"id":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"gym_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Click(p.Context, p.Args["id"].(string), p.Args["gym_id"].(string))
				},
			},
			"closeSession": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Tear a session down",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Sessions.Close(p.Args["id"].(string)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
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
