package nse

// The outer loop below is the heart of the engine (§4.5 "Scheduler"). It
// is the cooperative-executor translation of the source's single-threaded
// coroutine loop: running/waiting/pending are disjoint sets of *Task,
// and the wake hook is a channel send (C11's wakeMsg) rather than a
// direct callback, since Go has no equivalent of resuming a coroutine
// from arbitrary calling code.

import (
	"context"
	"fmt"
	"runtime/debug"
)

// memoryReclaimInterval gates how often the Scheduler hints the runtime
// to return memory to the OS (§4.5 step 6). Grounded on nothing in the
// pack; see DESIGN.md for why this one spot uses the standard library
// directly instead of a pack dependency.
const memoryReclaimInterval = 20

// tickBudgetMillis is the per-outer-iteration budget handed to the
// asynchronous I/O layer (§4.5.1, "≈50ms").
const tickBudgetMillis = 50

// ResultSink receives sanitized task output as it is produced, in
// addition to the HostAPI delivery the spec requires. A nil sink is
// valid; failures are logged and never abort the scan (§7).
type ResultSink interface {
	RecordHostResult(host Host, scriptID, text string)
	RecordPortResult(host Host, port Port, scriptID, text string)
}

// Scheduler drives one runlevel bucket (or a full ordered sequence of
// them) to completion (C6).
type Scheduler struct {
	api     HostAPI
	asyncio *AsyncIO
	adapter *hostAdapter
	sink    ResultSink
	logger  Logger

	running map[int64]*Task
	waiting map[int64]*Task
	pending map[int64]*Task

	iteration int
}

// NewScheduler builds a Scheduler bound to a host program and its Async
// I/O layer. sink may be nil; a nil logger falls back to DefaultLogger.
func NewScheduler(api HostAPI, asyncio *AsyncIO, sink ResultSink, logger Logger) *Scheduler {
	if logger == nil {
		logger = DefaultLogger
	}
	return &Scheduler{
		api:     api,
		asyncio: asyncio,
		adapter: newHostAdapter(api),
		sink:    sink,
		logger:  logger,
		running: make(map[int64]*Task),
		waiting: make(map[int64]*Task),
		pending: make(map[int64]*Task),
	}
}

// Run drains runlevel buckets strictly in order: no task of bucket k+1 is
// started until bucket k is fully drained (§4.5 "Ordering guarantees").
func (s *Scheduler) Run(ctx context.Context, buckets [][]*Task) {
	for _, bucket := range buckets {
		s.runBucket(ctx, bucket)
	}
}

func (s *Scheduler) runBucket(ctx context.Context, tasks []*Task) {
	total := len(tasks)
	if total == 0 {
		return
	}

	meter := s.api.ScanProgressMeter(fmt.Sprintf("NSE runlevel (%d tasks)", total))
	defer meter.EndTask()

	for _, t := range tasks {
		s.running[t.ID] = t
		s.adapter.track(t.Host, t.ID)
	}

	for len(s.running) > 0 || len(s.waiting) > 0 {
		s.iteration++

		s.api.NsockLoop(ctx, tickBudgetMillis)
		s.drainWakes()

		if s.api.KeyWasPressed() {
			s.logger.Logf("Active threads: %d (%d waiting)", len(s.running), len(s.waiting))
			meter.PrintStats(s.fraction(total))
		} else if meter.MayBePrinted() || s.api.Verbosity() > 0 || s.api.Debugging() > 0 {
			meter.PrintStatsIfNecessary(s.fraction(total))
		}

		s.timeoutSweep()
		s.runSweep()
		s.promotePending()

		if s.iteration%memoryReclaimInterval == 0 {
			debug.FreeOSMemory()
		}
	}
}

func (s *Scheduler) fraction(total int) float64 {
	done := total - len(s.running) - len(s.waiting) - len(s.pending)
	if total == 0 {
		return 1
	}
	return float64(done) / float64(total)
}

// timeoutSweep drops waiting tasks whose host has timed out (§4.5 step 3).
// Per §9's documented source behavior, the host's live-task set is
// deliberately NOT scrubbed here.
func (s *Scheduler) timeoutSweep() {
	for id, t := range s.waiting {
		if s.adapter.timedOut(t.Host) {
			delete(s.waiting, id)
			s.logger.Logf("%s target timed out", taskLabel(t))
		}
	}
}

// runSweep resumes every currently-running task exactly once (§4.5 step 4).
func (s *Scheduler) runSweep() {
	snapshot := make([]*Task, 0, len(s.running))
	for _, t := range s.running {
		snapshot = append(snapshot, t)
	}

	for _, t := range snapshot {
		st := t.resume(t.resumeArgs)

		switch st.kind {
		case stepError:
			s.logger.Logf("%s: %v", taskLabel(t), st.err)
			delete(s.running, t.ID)
			s.adapter.untrack(t.Host, t.ID)

		case stepYield:
			s.asyncio.submit(t.ID, st.wait)
			delete(s.running, t.ID)
			s.waiting[t.ID] = t

		case stepDone:
			delete(s.running, t.ID)
			s.adapter.untrack(t.Host, t.ID)
			if st.result != "" {
				s.deliver(t, Sanitize(st.result))
			}
		}
	}
}

// promotePending moves every pending task back into running, carrying
// over the resume_args the wake hook stashed for it (§4.5 step 5).
func (s *Scheduler) promotePending() {
	for id, t := range s.pending {
		delete(s.pending, id)
		s.running[id] = t
	}
}

// drainWakes pulls every completion the Async I/O layer has ready and
// applies the wake contract (§4.5 "Wake-up contract").
func (s *Scheduler) drainWakes() {
	for {
		select {
		case msg, ok := <-s.asyncio.outCh:
			if !ok {
				return
			}
			s.wake(msg.taskID, msg.args)
		default:
			return
		}
	}
}

// wake marks a waiting task for resumption. Wake-ups for unknown or
// non-waiting tasks are ignored, exactly as the source hook does.
func (s *Scheduler) wake(taskID int64, args []interface{}) {
	t, ok := s.waiting[taskID]
	if !ok {
		return
	}
	delete(s.waiting, taskID)
	t.resumeArgs = args
	s.pending[taskID] = t
}

func (s *Scheduler) deliver(t *Task, text string) {
	switch t.Kind {
	case HostTask:
		s.api.HostSetOutput(t.Host, t.Script.ID, text)
		if s.sink != nil {
			s.sink.RecordHostResult(t.Host, t.Script.ID, text)
		}
	case PortTask:
		s.api.PortSetOutput(t.Host, t.Port, t.Script.ID, text)
		if s.sink != nil {
			s.sink.RecordPortResult(t.Host, t.Port, t.Script.ID, text)
		}
	}
}

func taskLabel(t *Task) string {
	if t.Kind == PortTask {
		return fmt.Sprintf("%s against %s:%d", t.Script.ID, t.Host.IP, t.Port.ID)
	}
	return fmt.Sprintf("%s against %s", t.Script.ID, t.Host.IP)
}
