package llm

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

// UsageRecorder receives token tallies attributed to the provider that
// actually answered.
type UsageRecorder interface {
	Record(provider string, usage engine.Usage)
}

// Router implements engine.LLM over an ordered provider list: the primary
// first, then backups sorted by cost score. Each provider gets capped
// exponential backoff on transient errors before the router moves on;
// semantic errors surface immediately and never trigger failover.
type Router struct {
	clients []client
	retry   engine.RetryPolicy
	cache   *Cache
	usage   UsageRecorder
	notify  func(provider string, attempt int, delay time.Duration, err error)
}

// Option configures a Router.
type Option func(*Router)

// WithCache enables the FIFO response cache with the given capacity.
func WithCache(capacity int) Option {
	return func(r *Router) { r.cache = NewCache(capacity) }
}

// WithUsage attaches a usage recorder.
func WithUsage(rec UsageRecorder) Option {
	return func(r *Router) { r.usage = rec }
}

// WithRetryPolicy overrides the per-provider retry policy.
func WithRetryPolicy(p engine.RetryPolicy) Option {
	return func(r *Router) { r.retry = p }
}

// WithRetryNotify installs a callback fired before each retry sleep.
func WithRetryNotify(fn func(provider string, attempt int, delay time.Duration, err error)) Option {
	return func(r *Router) { r.notify = fn }
}

// NewRouter builds a router. providers[0] is the primary; the remainder are
// backups, re-sorted cheapest first. Backups flagged no_tools cannot serve
// tool-calling requests and are skipped.
func NewRouter(providers []Provider, opts ...Option) (*Router, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if providers[0].NoTools {
		return nil, fmt.Errorf("primary provider %s has tool calling disabled", providers[0].Name)
	}

	var backups []Provider
	for _, p := range providers[1:] {
		if p.NoTools {
			log.Printf("backup provider %s skipped: tool calling disabled", p.Name)
			continue
		}
		backups = append(backups, p)
	}
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CostScore < backups[j].CostScore
	})

	ordered := append([]Provider{providers[0]}, backups...)
	clients := make([]client, 0, len(ordered))
	for _, p := range ordered {
		c, err := NewClient(p)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}

	r := &Router{
		clients: clients,
		retry:   engine.DefaultProviderRetryPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// newRouterWithClients is the test seam.
func newRouterWithClients(clients []client, opts ...Option) *Router {
	r := &Router{
		clients: clients,
		retry:   engine.DefaultProviderRetryPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the configured provider names in failover order.
func (r *Router) Providers() []string {
	names := make([]string, len(r.clients))
	for i, c := range r.clients {
		names[i] = c.Name()
	}
	return names
}

// AskTool implements engine.LLM. A cache hit short-circuits the provider
// chain and records no usage.
func (r *Router) AskTool(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema, choice engine.ToolChoice) (*engine.Response, error) {
	var key string
	if r.cache != nil {
		key = r.cache.Key(msgs, len(tools))
		if resp := r.cache.Get(key); resp != nil {
			return resp, nil
		}
	}

	resp, err := r.ask(ctx, func(ctx context.Context, c client) (*engine.Response, error) {
		return c.Chat(ctx, msgs, tools, choice, 0)
	})
	if err != nil {
		return nil, err
	}

	r.record(resp.Provider, resp.Usage)
	if r.cache != nil {
		r.cache.Put(key, resp)
	}
	return resp, nil
}

// QuickAsk implements engine.LLM: a tool-free completion with a token cap,
// same retry and failover semantics, never cached.
func (r *Router) QuickAsk(ctx context.Context, msgs []engine.Message, maxTokens int) (string, error) {
	resp, err := r.ask(ctx, func(ctx context.Context, c client) (*engine.Response, error) {
		return c.Chat(ctx, msgs, nil, engine.ToolChoiceNone, maxTokens)
	})
	if err != nil {
		return "", err
	}
	r.record(resp.Provider, resp.Usage)
	return resp.Content, nil
}

// AskToolStream implements engine.LLM. Failover happens only while the
// stream is still empty; once a chunk has been forwarded the consumer has
// seen partial output and a mid-stream failure must surface as an error.
func (r *Router) AskToolStream(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema) (<-chan engine.StreamChunk, <-chan error) {
	outCh := make(chan engine.StreamChunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		var lastErr error
		for _, c := range r.clients {
			forwarded, err := r.forwardStream(ctx, c, msgs, tools, outCh)
			if err == nil {
				errCh <- nil
				return
			}
			lastErr = err
			if forwarded || !engine.IsTransient(err) {
				errCh <- err
				return
			}
			log.Printf("stream from %s failed, trying next provider: %v", c.Name(), err)
		}
		errCh <- fmt.Errorf("all providers failed: %w", lastErr)
	}()

	return outCh, errCh
}

// forwardStream relays one provider's stream to out and reports whether any
// chunk reached the consumer.
func (r *Router) forwardStream(ctx context.Context, c client, msgs []engine.Message, tools []engine.ToolSchema, out chan<- engine.StreamChunk) (bool, error) {
	chunkCh, errCh := c.Stream(ctx, msgs, tools)

	forwarded := false
	var usage engine.Usage
	for chunk := range chunkCh {
		if chunk.Kind == "usage" {
			usage = chunk.Usage
		}
		select {
		case out <- chunk:
			forwarded = true
		case <-ctx.Done():
			return forwarded, ctx.Err()
		}
	}

	if err := <-errCh; err != nil {
		return forwarded, err
	}
	r.record(c.Name(), usage)
	return forwarded, nil
}

// ask walks the provider chain. Each provider is retried per the policy;
// only transient exhaustion moves to the next provider.
func (r *Router) ask(ctx context.Context, call func(ctx context.Context, c client) (*engine.Response, error)) (*engine.Response, error) {
	var lastErr error
	for i, c := range r.clients {
		name := c.Name()
		if i > 0 {
			log.Printf("failing over to provider %s", name)
		}

		resp, err := engine.RetryWithPolicy(ctx, r.retry,
			func(ctx context.Context) (*engine.Response, error) { return call(ctx, c) },
			engine.ClassifyProviderError,
			func(attempt int, delay time.Duration, err error) {
				if r.notify != nil {
					r.notify(name, attempt, delay, err)
				}
				log.Printf("provider %s attempt %d failed, retrying in %s: %v", name, attempt, delay.Round(time.Millisecond), err)
			},
		)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !engine.IsTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// record attributes one answered request to its provider. Providers that
// omit the usage field still count as a request, with zero tokens.
func (r *Router) record(provider string, usage engine.Usage) {
	if r.usage == nil {
		return
	}
	r.usage.Record(provider, usage)
}
