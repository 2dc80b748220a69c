// Package knowledge exposes the lesson store to the agent as tools.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/omni/internal/engine"
	store "github.com/ChamsBouzaiene/omni/internal/knowledge"
)

const saveSchema = `{
	"type": "object",
	"properties": {
		"topic": {
			"type": "string",
			"description": "Short label for the lesson."
		},
		"lesson": {
			"type": "string",
			"description": "The reusable insight to keep."
		}
	},
	"required": ["topic", "lesson"]
}`

// SaveKnowledge builds the save_knowledge tool.
func SaveKnowledge(s *store.Store) engine.Tool {
	return engine.Tool{
		Name:        "save_knowledge",
		Description: "Persist a reusable lesson or fact for future runs.",
		SchemaJSON:  saveSchema,
		SideEffect:  true,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			topic, _ := args["topic"].(string)
			lesson, _ := args["lesson"].(string)
			if err := s.Save(ctx, topic, lesson); err != nil {
				return nil, err
			}
			return "Saved lesson under topic: " + topic, nil
		},
	}
}

const recallSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "What to look up in stored knowledge."
		}
	},
	"required": ["query"]
}`

// RecallKnowledge builds the recall_knowledge tool.
func RecallKnowledge(s *store.Store) engine.Tool {
	return engine.Tool{
		Name:        "recall_knowledge",
		Description: "Search lessons saved from previous runs.",
		SchemaJSON:  recallSchema,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			lessons, err := s.Search(ctx, query, 5)
			if err != nil {
				return nil, err
			}
			if len(lessons) == 0 {
				return "No stored knowledge matches: " + query, nil
			}
			var b strings.Builder
			for i, l := range lessons {
				fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, l.Topic, l.Body)
			}
			return b.String(), nil
		},
	}
}
