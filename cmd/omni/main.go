// Command omni runs the autonomous agent: a REPL (or one-shot task) driving
// the think-act loop with the configured providers and tools.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ChamsBouzaiene/omni/internal/config"
	"github.com/ChamsBouzaiene/omni/internal/engine"
	"github.com/ChamsBouzaiene/omni/internal/knowledge"
	"github.com/ChamsBouzaiene/omni/internal/llm"
	"github.com/ChamsBouzaiene/omni/internal/tools"
	"github.com/ChamsBouzaiene/omni/internal/usage"
)

const systemPrompt = `You are Omni, an autonomous agent that completes tasks for the user by calling tools. Work step by step: inspect, act, verify. Use the tools available to you instead of guessing, and keep going until the task is genuinely done. When it is, call the terminate tool with the complete final answer.`

const nextStepPrompt = `Decide the single best next action. If the previous result was an error, diagnose it before retrying. Call terminate only when the user's request is fully handled.`

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "omni.json", "path to the JSON config file")
	task := flag.String("task", "", "run one task and exit instead of starting the REPL")
	flag.Parse()

	if err := run(*configPath, *task); err != nil {
		log.Fatalf("omni: %v", err)
	}
}

// runtime holds the pieces that a config reload replaces.
type runtime struct {
	mu     sync.Mutex
	cfg    *config.Config
	router *llm.Router
}

func (rt *runtime) current() (*config.Config, *llm.Router) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.cfg, rt.router
}

func (rt *runtime) swap(cfg *config.Config, router *llm.Router) {
	rt.mu.Lock()
	rt.cfg = cfg
	rt.router = router
	rt.mu.Unlock()
}

func run(configPath, task string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tracker *usage.Tracker
	if cfg.Usage.Enabled {
		costs := map[string]float64{}
		for _, p := range cfg.Providers() {
			costs[p.Name] = p.CostScore
		}
		tracker = usage.NewTracker(cfg.Usage.FilePath, costs)
		defer func() {
			if err := tracker.Flush(); err != nil {
				log.Printf("usage flush failed: %v", err)
			}
		}()
	}

	router, err := buildRouter(cfg, tracker)
	if err != nil {
		return err
	}
	rt := &runtime{cfg: cfg, router: router}

	if err := config.Watch(ctx, configPath, func(next *config.Config) {
		nextRouter, err := buildRouter(next, tracker)
		if err != nil {
			log.Printf("config reload kept previous providers: %v", err)
			return
		}
		rt.swap(next, nextRouter)
	}); err != nil {
		log.Printf("config watching disabled: %v", err)
	}

	var lessons *knowledge.Store
	if cfg.Knowledge.Enabled {
		lessons, err = knowledge.Open(ctx, cfg.Knowledge.Dir)
		if err != nil {
			log.Printf("knowledge store disabled: %v", err)
		} else {
			defer lessons.Close()
		}
	}

	registry, err := tools.Build(cfg, lessons)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.CleanupAll(context.Background()); err != nil {
			log.Printf("tool cleanup: %v", err)
		}
	}()

	events := make(chan engine.Event, 64)
	go renderEvents(events)

	if task != "" {
		return runTask(ctx, rt, registry, lessons, events, task)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := runTask(ctx, rt, registry, lessons, events, line); err != nil {
			log.Printf("run failed: %v", err)
		}
		if ctx.Err() != nil {
			break
		}
		fmt.Println()
	}
	return nil
}

func buildRouter(cfg *config.Config, tracker *usage.Tracker) (*llm.Router, error) {
	opts := []llm.Option{}
	if cfg.Cache.Enabled {
		opts = append(opts, llm.WithCache(cfg.Cache.Capacity))
	}
	if tracker != nil {
		opts = append(opts, llm.WithUsage(tracker))
	}
	return llm.NewRouter(cfg.Providers(), opts...)
}

// runTask runs one request on a fresh agent so conversations never bleed
// into each other.
func runTask(ctx context.Context, rt *runtime, registry engine.ToolRegistry, lessons *knowledge.Store, events chan<- engine.Event, request string) error {
	cfg, router := rt.current()

	memory := engine.NewMemory(cfg.Memory.MaxMessages, cfg.Memory.SummaryThreshold)
	dispatcher := engine.NewDispatcher(registry)
	if cfg.Cache.Enabled {
		dispatcher.EnableCache()
	}

	agentCfg := engine.DefaultAgentConfig()
	agentCfg.MaxSteps = cfg.MaxSteps
	agentCfg.SystemPrompt = systemPrompt
	agentCfg.NextStepPrompt = nextStepPrompt

	agent := engine.NewAgent(router, memory, dispatcher, engine.Hooks{engine.EventHook{Ch: events}}, agentCfg)

	answer, err := agent.Run(ctx, request)
	if err != nil {
		return err
	}
	if answer != "" {
		fmt.Println(answer)
	} else {
		fmt.Println("(no final answer; step budget exhausted)")
	}

	if lessons != nil && agent.State() == engine.StateFinished {
		if err := agent.SaveLesson(ctx, lessons); err != nil {
			log.Printf("lesson hook: %v", err)
		}
	}
	return nil
}

func renderEvents(events <-chan engine.Event) {
	for ev := range events {
		switch ev.Kind {
		case "status":
			if m, ok := ev.Payload.(map[string]any); ok {
				fmt.Fprintf(os.Stderr, "... step %v\n", m["step"])
			}
		case "content":
			fmt.Fprintf(os.Stderr, "assistant: %v\n", ev.Payload)
		case "tool_started":
			fmt.Fprintf(os.Stderr, "-> %v\n", ev.Payload)
		case "tool_finished":
			if m, ok := ev.Payload.(map[string]any); ok {
				status := "ok"
				if failed, _ := m["error"].(bool); failed {
					status = "error"
				}
				fmt.Fprintf(os.Stderr, "<- %v (%s)\n", m["tool"], status)
			}
		}
	}
}
