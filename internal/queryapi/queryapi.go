// Package queryapi exposes a read-only GraphQL schema over the Store:
// posts, trends, and alerts queries for downstream consumers that only
// need to read entities and posts, never write them.
package queryapi

import (
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"github.com/geraldfingburke/trendwatch/internal/models"
	"github.com/geraldfingburke/trendwatch/internal/store"
)

// postType, trendType, and alertType expose the Store's row fields except
// the row ids and posts.indexed_at; there are no mutations, matching this system's explicit
// non-goal of owning a dashboard or write API.
var postType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Post",
	Fields: graphql.Fields{
		"id":         &graphql.Field{Type: graphql.String},
		"sourceKind": &graphql.Field{Type: graphql.String},
		"author":     &graphql.Field{Type: graphql.String},
		"text":       &graphql.Field{Type: graphql.String},
		"url":        &graphql.Field{Type: graphql.String},
		"createdAt":  &graphql.Field{Type: graphql.DateTime},
		"hashtags":   &graphql.Field{Type: graphql.NewList(graphql.String)},
		"entities":   &graphql.Field{Type: graphql.NewList(graphql.String)},
	},
})

var trendType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Trend",
	Fields: graphql.Fields{
		"entity":        &graphql.Field{Type: graphql.String},
		"sourceKind":    &graphql.Field{Type: graphql.String},
		"currentCount":  &graphql.Field{Type: graphql.Int},
		"baselineCount": &graphql.Field{Type: graphql.Int},
		"trendScore":    &graphql.Field{Type: graphql.Float},
		"growthRate":    &graphql.Field{Type: graphql.Float},
		"velocity":      &graphql.Field{Type: graphql.Float},
		"zScore":        &graphql.Field{Type: graphql.Float},
		"createdAt":     &graphql.Field{Type: graphql.DateTime},
	},
})

var alertType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Alert",
	Fields: graphql.Fields{
		"entity":         &graphql.Field{Type: graphql.String},
		"sourceKind":     &graphql.Field{Type: graphql.String},
		"kind":           &graphql.Field{Type: graphql.String},
		"thresholdValue": &graphql.Field{Type: graphql.Float},
		"actualValue":    &graphql.Field{Type: graphql.Float},
		"message":        &graphql.Field{Type: graphql.String},
		"createdAt":      &graphql.Field{Type: graphql.DateTime},
		"status":         &graphql.Field{Type: graphql.String},
	},
})

// Handler builds the GraphQL HTTP handler backed by st.
func Handler(st *store.Store) (*handler.Handler, error) {
	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"posts": &graphql.Field{
				Type: graphql.NewList(postType),
				Args: graphql.FieldConfigArgument{
					"sourceKind": &graphql.ArgumentConfig{Type: graphql.String},
					"from":       &graphql.ArgumentConfig{Type: graphql.DateTime},
					"to":         &graphql.ArgumentConfig{Type: graphql.DateTime},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: resolvePosts(st),
			},
			"trends": &graphql.Field{
				Type: graphql.NewList(trendType),
				Args: graphql.FieldConfigArgument{
					"entity":     &graphql.ArgumentConfig{Type: graphql.String},
					"sourceKind": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: resolveTrends(st),
			},
			"alerts": &graphql.Field{
				Type: graphql.NewList(alertType),
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: resolveAlerts(st),
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return nil, err
	}

	return handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: false,
	}), nil
}

func resolvePosts(st *store.Store) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		sourceKind := models.SourceFeed
		if v, ok := p.Args["sourceKind"].(string); ok && v != "" {
			sourceKind = models.SourceKind(v)
		}
		to := time.Now().UTC()
		if v, ok := p.Args["to"].(time.Time); ok {
			to = v
		}
		from := to.Add(-24 * time.Hour)
		if v, ok := p.Args["from"].(time.Time); ok {
			from = v
		}

		posts, err := st.QueryPostsInWindow(p.Context, sourceKind, from, to)
		if err != nil {
			return nil, err
		}
		if limit, ok := p.Args["limit"].(int); ok && limit > 0 && limit < len(posts) {
			posts = posts[:limit]
		}
		return posts, nil
	}
}

func resolveTrends(st *store.Store) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		entity, _ := p.Args["entity"].(string)
		sourceKind := models.SourceKind("")
		if v, ok := p.Args["sourceKind"].(string); ok {
			sourceKind = models.SourceKind(v)
		}
		limit, _ := p.Args["limit"].(int)
		if limit == 0 {
			limit = 50
		}
		return st.QueryTrends(p.Context, entity, sourceKind, limit)
	}
}

func resolveAlerts(st *store.Store) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		status := models.AlertStatus("")
		if v, ok := p.Args["status"].(string); ok {
			status = models.AlertStatus(v)
		}
		limit, _ := p.Args["limit"].(int)
		if limit == 0 {
			limit = 50
		}
		return st.QueryAlerts(p.Context, status, limit)
	}
}
