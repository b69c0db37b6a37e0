package nse

// Engine wires the full data flow of §2: Selector -> Task Factory ->
// Partitioner -> Scheduler -> Sanitizer -> host output channels.

import (
	"context"
	"fmt"
)

// Engine is the embedded entry point (§6 "Embedded entry point"): built
// once per host program with an api and a rule list, then invoked once
// per scan with the hosts it should run scripts against.
type Engine struct {
	api     HostAPI
	rules   []string
	sink    ResultSink
	logger  Logger
	workers int
}

// Option customizes an Engine at construction time.
type Option func(*Engine)

// WithSink attaches a ResultSink that receives every delivered result in
// addition to the HostAPI sinks (§4.10).
func WithSink(sink ResultSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger overrides the engine's Logger (§7).
func WithLogger(logger Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAsyncIOWorkers sets the Async I/O layer's goroutine pool size.
// Defaults to 64.
func WithAsyncIOWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// New builds an Engine bound to api and rules (§6). Call Run once per
// scan with the hosts it should execute scripts against.
func New(api HostAPI, rules []string, opts ...Option) *Engine {
	e := &Engine{api: api, rules: rules, logger: DefaultLogger, workers: 64}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run loads and selects scripts, builds tasks for every host and open
// port, partitions them into runlevels, and drives them to completion.
func (e *Engine) Run(ctx context.Context, hosts []Host) error {
	selector := NewSelector(e.api)
	scripts, err := selector.Select(ctx, e.rules)
	if err != nil {
		return fmt.Errorf("script selection failed: %w", err)
	}
	e.logger.Logf("Loaded %d scripts for scanning.", len(scripts))

	factory := NewTaskFactory()
	var tasks []*Task
	for _, host := range hosts {
		tasks = append(tasks, factory.HostTasks(scripts, host)...)
		for _, port := range e.api.Ports(host) {
			tasks = append(tasks, factory.PortTasks(scripts, host, port)...)
		}
	}

	buckets := Partition(tasks)

	asyncio := NewAsyncIO(e.workers)
	asyncio.Start(ctx)
	defer asyncio.Stop()

	scheduler := NewScheduler(e.api, asyncio, e.sink, e.logger)
	scheduler.Run(ctx, buckets)

	e.logger.Logf("Script Scanning completed.")
	return nil
}
