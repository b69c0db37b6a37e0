package nse

import (
	"fmt"
	"runtime/debug"
)

// WaitKind identifies the sort of suspension point a task is parked at.
type WaitKind int

const (
	// WaitTCP waits for a TCP connection attempt to a host/port.
	WaitTCP WaitKind = iota
	// WaitRead dials its own connection to the host/port, writes the
	// optional payload, then waits for bytes to arrive (or EOF/timeout).
	WaitRead
	// WaitTimer waits for a fixed duration to elapse; scripts use this
	// to pace retries.
	WaitTimer
	// WaitTLSCert performs a TLS handshake and reports the leaf
	// certificate's subject.
	WaitTLSCert
)

// WaitRequest describes what a task is waiting for. It is opaque to the
// Scheduler; only the Async I/O layer interprets it.
type WaitRequest struct {
	Kind    WaitKind
	Host    Host
	Port    Port
	Payload []byte // bytes to write before reading, for WaitRead
	MillisTimeout int
}

// stepKind is the outcome of driving a task's goroutine forward by one
// step.
type stepKind int

const (
	stepYield stepKind = iota
	stepDone
	stepError
)

// step is what a task's goroutine reports back to the Scheduler each time
// it is resumed: either it hit another wait point, finished (optionally
// with a string result), or failed.
type step struct {
	kind   stepKind
	wait   WaitRequest
	result string
	err    error
}

// Task is one invocation of a script against a specific host or
// (host, port) (§3 "Task"). It owns its environment exclusively; the
// Script it points to is shared read-only.
type Task struct {
	ID       int64
	Script   *Script
	Kind     TaskKind
	Host     Host
	Port     Port
	Runlevel int

	state      TaskState
	resumeArgs []interface{}

	def *ScriptDef
	env *Env

	toTask   chan []interface{} // Scheduler -> task goroutine resume
	fromTask chan step          // task goroutine -> Scheduler

	output *string
}

// Env is the per-task suspension handle passed to a script's Action. It is
// the typed-systems stand-in for the source's coroutine yield/resume pair
// (§9 "Cooperative tasks"): calling a Wait* method sends a WaitRequest to
// the Scheduler and blocks until the Async I/O layer (C11) supplies a
// result through the wake channel.
type Env struct {
	task *Task
}

// WaitTCP suspends the calling task until a TCP connection to host:port
// either succeeds, fails, or the timeout elapses. It returns the dialed
// connection's opaque result payload (nil on failure) and any error the
// Async I/O layer reported.
func (e *Env) WaitTCP(host Host, port Port, millisTimeout int) ([]byte, error) {
	args := e.wait(WaitRequest{Kind: WaitTCP, Host: host, Port: port, MillisTimeout: millisTimeout})
	return decodeWaitArgs(args)
}

// WaitRead suspends the calling task until bytes are available (or EOF,
// or the timeout elapses) on a connection to host:port, optionally
// writing payload first.
func (e *Env) WaitRead(host Host, port Port, payload []byte, millisTimeout int) ([]byte, error) {
	args := e.wait(WaitRequest{Kind: WaitRead, Host: host, Port: port, Payload: payload, MillisTimeout: millisTimeout})
	return decodeWaitArgs(args)
}

// WaitTimer suspends the calling task for the given duration.
func (e *Env) WaitTimer(millisTimeout int) {
	e.wait(WaitRequest{Kind: WaitTimer, MillisTimeout: millisTimeout})
}

// WaitTLSCert suspends the calling task until a TLS handshake against
// host:port completes, returning the leaf certificate's subject common
// name.
func (e *Env) WaitTLSCert(host Host, port Port, millisTimeout int) (string, error) {
	args := e.wait(WaitRequest{Kind: WaitTLSCert, Host: host, Port: port, MillisTimeout: millisTimeout})
	data, err := decodeWaitArgs(args)
	return string(data), err
}

func (e *Env) wait(req WaitRequest) []interface{} {
	e.task.fromTask <- step{kind: stepYield, wait: req}
	return <-e.task.toTask
}

func decodeWaitArgs(args []interface{}) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var data []byte
	var err error
	if args[0] != nil {
		data, _ = args[0].([]byte)
	}
	if len(args) > 1 && args[1] != nil {
		err, _ = args[1].(error)
	}
	return data, err
}

// newTask builds a suspended Task bound to def/env, ready for the
// Scheduler to drive. The goroutine blocks immediately on its resume
// channel, so "exactly one task is on the CPU at a time" holds even
// though each task has its own goroutine: the Scheduler never sends a
// second resume until the first task yields or completes.
func newTask(id int64, script *Script, kind TaskKind, host Host, port Port, runlevel int, def *ScriptDef) *Task {
	t := &Task{
		ID:       id,
		Script:   script,
		Kind:     kind,
		Host:     host,
		Port:     port,
		Runlevel: runlevel,
		state:    StateReady,
		def:      def,
		toTask:   make(chan []interface{}),
		fromTask: make(chan step),
	}
	t.env = &Env{task: t}
	go t.run()
	return t
}

func (t *Task) run() {
	defer func() {
		if r := recover(); r != nil {
			t.fromTask <- step{kind: stepError, err: fmt.Errorf("%v\n%s", r, debug.Stack())}
		}
	}()

	// Block until the Scheduler sends the first resume; this is the
	// ready -> running transition.
	<-t.toTask

	result, err := t.def.Action(t.env, t.Host, t.Port)
	if err != nil {
		t.fromTask <- step{kind: stepError, err: err}
		return
	}
	t.fromTask <- step{kind: stepDone, result: result}
}

// resume sends resumeArgs to the task's goroutine and blocks for its next
// step. Only the Scheduler calls this, and only one task at a time.
func (t *Task) resume(args []interface{}) step {
	t.toTask <- args
	return <-t.fromTask
}
