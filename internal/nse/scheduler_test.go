package nse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type recordingSink struct {
	hostResults []string
	portResults []string
}

func (r *recordingSink) RecordHostResult(host Host, scriptID, text string) {
	r.hostResults = append(r.hostResults, text)
}

func (r *recordingSink) RecordPortResult(host Host, port Port, scriptID, text string) {
	r.portResults = append(r.portResults, text)
}

func TestSchedulerRunsHostTaskToCompletion(t *testing.T) {
	api := newFakeHostAPI()
	host := Host{IP: "10.1.1.1"}

	script := &Script{ID: "greet"}
	def := &ScriptDef{
		HostRule: func(Host) bool { return true },
		Action: func(env *Env, host Host, port Port) (string, error) {
			env.WaitTimer(5)
			return "hello", nil
		},
	}
	task := newTask(1, script, HostTask, host, Port{}, 1, def)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	asyncio := NewAsyncIO(2)
	asyncio.Start(ctx)
	defer asyncio.Stop()

	sink := &recordingSink{}
	sched := NewScheduler(api, asyncio, sink, nil)
	sched.Run(ctx, [][]*Task{{task}})

	if len(sink.hostResults) != 1 || sink.hostResults[0] != "hello" {
		t.Fatalf("expected sink to record 'hello', got %v", sink.hostResults)
	}
	if len(api.hostOutputs) != 1 || api.hostOutputs[0].text != "hello" {
		t.Fatalf("expected HostSetOutput called with 'hello', got %v", api.hostOutputs)
	}
	if api.timeoutClocks[host.IP] {
		t.Fatal("expected the timeout clock to be stopped once the task completed")
	}
}

func TestSchedulerDropsOutputOnTaskError(t *testing.T) {
	api := newFakeHostAPI()
	host := Host{IP: "10.1.1.2"}

	script := &Script{ID: "fails"}
	def := &ScriptDef{
		HostRule: func(Host) bool { return true },
		Action: func(env *Env, host Host, port Port) (string, error) {
			return "", errors.New("boom")
		},
	}
	task := newTask(2, script, HostTask, host, Port{}, 1, def)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	asyncio := NewAsyncIO(1)
	asyncio.Start(ctx)
	defer asyncio.Stop()

	sched := NewScheduler(api, asyncio, nil, nil)
	sched.Run(ctx, [][]*Task{{task}})

	if len(api.hostOutputs) != 0 {
		t.Fatalf("expected no output recorded for a failed task, got %v", api.hostOutputs)
	}
}

func TestSchedulerSkipsEmptyBuckets(t *testing.T) {
	api := newFakeHostAPI()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	asyncio := NewAsyncIO(1)
	asyncio.Start(ctx)
	defer asyncio.Stop()

	sched := NewScheduler(api, asyncio, nil, nil)
	sched.Run(ctx, [][]*Task{{}, nil})
}

// TestSchedulerDropsWaitingTaskOnTimeout drives a task all the way from
// running to waiting to timeoutSweep through a real Scheduler, matching
// scenario 5's "no output delivered; a single timeout log line" contract.
func TestSchedulerDropsWaitingTaskOnTimeout(t *testing.T) {
	api := newFakeHostAPI()
	host := Host{IP: "10.1.1.9"}
	api.timedOutHosts[host.IP] = true // host is already reported timed out

	logger := &recordingLogger{}

	script := &Script{ID: "slow"}
	def := &ScriptDef{
		HostRule: func(Host) bool { return true },
		Action: func(env *Env, host Host, port Port) (string, error) {
			env.WaitTimer(10000)
			return "too slow", nil
		},
	}
	task := newTask(4, script, HostTask, host, Port{}, 1, def)

	ctx, cancel := context.WithCancel(context.Background())
	asyncio := NewAsyncIO(1)
	asyncio.Start(ctx)

	sink := &recordingSink{}
	sched := NewScheduler(api, asyncio, sink, logger)
	sched.Run(ctx, [][]*Task{{task}})

	// The dropped task's async wait (WaitTimer(10000)) is still pending in
	// the worker pool; cancel before Stop so the worker observes ctx.Done()
	// instead of blocking the test for the full 10-second timer.
	cancel()
	asyncio.Stop()

	if len(sink.hostResults) != 0 {
		t.Fatalf("expected no sink delivery for a timed-out task, got %v", sink.hostResults)
	}
	if len(api.hostOutputs) != 0 {
		t.Fatalf("expected no HostSetOutput call for a timed-out task, got %v", api.hostOutputs)
	}

	var timeoutLogs int
	for _, l := range logger.lines {
		if strings.Contains(l, "target timed out") {
			timeoutLogs++
		}
	}
	if timeoutLogs != 1 {
		t.Fatalf("expected exactly one 'target timed out' log line, got %d (%v)", timeoutLogs, logger.lines)
	}
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Logf(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestSchedulerDeliversPortResults(t *testing.T) {
	api := newFakeHostAPI()
	host := Host{IP: "10.1.1.3"}
	port := Port{ID: 80}

	script := &Script{ID: "webcheck"}
	def := &ScriptDef{
		PortRule: func(Host, Port) bool { return true },
		Action: func(env *Env, host Host, port Port) (string, error) {
			return "open", nil
		},
	}
	task := newTask(3, script, PortTask, host, port, 1, def)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	asyncio := NewAsyncIO(1)
	asyncio.Start(ctx)
	defer asyncio.Stop()

	sink := &recordingSink{}
	sched := NewScheduler(api, asyncio, sink, nil)
	sched.Run(ctx, [][]*Task{{task}})

	if len(sink.portResults) != 1 || sink.portResults[0] != "open" {
		t.Fatalf("expected port result 'open' recorded, got %v", sink.portResults)
	}
	if len(api.portOutputs) != 1 || api.portOutputs[0].port != 80 {
		t.Fatalf("expected PortSetOutput called for port 80, got %v", api.portOutputs)
	}
}
