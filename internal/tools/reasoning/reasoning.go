// Package reasoning provides the meta tools: terminate, think, and plan.
// They act on the conversation rather than the outside world.
package reasoning

import (
	"context"
	"fmt"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

const terminateSchema = `{
	"type": "object",
	"properties": {
		"output": {
			"type": "string",
			"description": "The complete final answer to deliver to the user."
		}
	},
	"required": ["output"]
}`

// Terminate builds the tool that ends a run. Its output argument becomes the
// run's final answer.
func Terminate() engine.Tool {
	return engine.Tool{
		Name:        engine.TerminateToolName,
		Description: "Finish the task and deliver the final answer. Call this exactly once, when the task is fully done.",
		SchemaJSON:  terminateSchema,
		SideEffect:  true, // ends the run; never cached or retried
		Instructions: "Call terminate only when the user's request is completely handled. " +
			"Put the entire final answer in the output argument; nothing outside it reaches the user.",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			output, _ := args["output"].(string)
			if output == "" {
				return nil, fmt.Errorf("output must not be empty")
			}
			return output, nil
		},
	}
}

const thinkSchema = `{
	"type": "object",
	"properties": {
		"thought": {
			"type": "string",
			"description": "Reasoning to record before acting."
		}
	},
	"required": ["thought"]
}`

// Think builds a scratchpad tool. The thought is echoed back so it lands in
// the conversation log.
func Think() engine.Tool {
	return engine.Tool{
		Name:        "think",
		Description: "Record intermediate reasoning without taking any action. Use this to work through a hard step before committing to it.",
		SchemaJSON:  thinkSchema,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			thought, _ := args["thought"].(string)
			return "Noted: " + thought, nil
		},
	}
}

const planSchema = `{
	"type": "object",
	"properties": {
		"steps": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1,
			"description": "Ordered list of steps to carry out."
		}
	},
	"required": ["steps"]
}`

// Plan builds a tool that pins an explicit step list into the conversation.
func Plan() engine.Tool {
	return engine.Tool{
		Name:        "plan",
		Description: "Lay out an ordered plan for a multi-step task. Revise it by calling plan again.",
		SchemaJSON:  planSchema,
		SideEffect:  true, // a re-issued plan supersedes the old one; serving it from cache would hide the revision
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			raw, _ := args["steps"].([]any)
			if len(raw) == 0 {
				return nil, fmt.Errorf("steps must not be empty")
			}
			out := "Plan:\n"
			for i, s := range raw {
				out += fmt.Sprintf("%d. %v\n", i+1, s)
			}
			return out, nil
		},
	}
}
