// Package tools assembles the agent's tool registry from configuration.
package tools

import (
	"fmt"
	"time"

	"github.com/ChamsBouzaiene/omni/internal/config"
	"github.com/ChamsBouzaiene/omni/internal/engine"
	store "github.com/ChamsBouzaiene/omni/internal/knowledge"
	"github.com/ChamsBouzaiene/omni/internal/sandbox"
	"github.com/ChamsBouzaiene/omni/internal/tools/browser"
	"github.com/ChamsBouzaiene/omni/internal/tools/execution"
	"github.com/ChamsBouzaiene/omni/internal/tools/filesystem"
	knowledgetools "github.com/ChamsBouzaiene/omni/internal/tools/knowledge"
	"github.com/ChamsBouzaiene/omni/internal/tools/reasoning"
	"github.com/ChamsBouzaiene/omni/internal/tools/search"
)

// Build assembles the registry. The terminate tool is always present;
// everything else is filtered by cfg.EnabledTools when the list is non-empty.
// lessons may be nil, which drops the knowledge tools.
func Build(cfg *config.Config, lessons *store.Store) (engine.ToolRegistry, error) {
	registry := engine.ToolRegistry{}
	add := func(t engine.Tool) { registry[t.Name] = t }

	add(reasoning.Terminate())
	add(reasoning.Think())
	add(reasoning.Plan())
	add(reasoning.Calculator())

	if cfg.Search.APIKey != "" {
		add(search.WebSearch(search.NewClient(cfg.Search.APIKey, cfg.Search.BaseURL)))
	}

	ws, err := filesystem.NewWorkspace(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("workspace setup: %w", err)
	}
	add(ws.ReadFile())
	add(ws.WriteFile())
	add(ws.ListFiles())
	add(ws.DeleteFile())

	if cfg.Sandbox.Enabled {
		runner := sandbox.NewRunner(sandbox.Options{
			Image:       cfg.Sandbox.Image,
			MemoryLimit: cfg.Sandbox.MemoryLimit,
			Timeout:     time.Duration(cfg.Sandbox.TimeoutSec) * time.Second,
		})
		add(execution.Terminal(runner, ws.Root()))
		add(execution.PythonExecute(runner, ws.Root()))
	}

	add(browser.Tool(browser.NewSession()))

	if lessons != nil {
		add(knowledgetools.SaveKnowledge(lessons))
		add(knowledgetools.RecallKnowledge(lessons))
	}

	if len(cfg.EnabledTools) > 0 {
		enabled := map[string]bool{engine.TerminateToolName: true}
		for _, name := range cfg.EnabledTools {
			enabled[name] = true
		}
		for name := range registry {
			if !enabled[name] {
				delete(registry, name)
			}
		}
	}

	if _, ok := registry[engine.TerminateToolName]; !ok {
		return nil, fmt.Errorf("terminate tool is mandatory")
	}
	return registry, nil
}
