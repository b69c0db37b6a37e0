package nse

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
)

// Adapted from the teacher's internal/scan/factory.go: per-target
// construction of independent units of work, with predicate panics
// treated as non-fatal skips rather than aborting the batch.

var nextTaskID int64

// TaskFactory evaluates scripts against hosts and ports, producing
// suspended Tasks for every match (§4.3 "Task Factory").
type TaskFactory struct{}

// NewTaskFactory returns a ready TaskFactory.
func NewTaskFactory() *TaskFactory {
	return &TaskFactory{}
}

// HostTasks evaluates every script's HostRule against host and returns one
// Task per match. Scripts with no HostRule are skipped for host scanning.
func (f *TaskFactory) HostTasks(scripts []*Script, host Host) []*Task {
	var tasks []*Task
	for _, s := range scripts {
		def := s.newEnvironment()
		if def.HostRule == nil {
			continue
		}

		matched, err := f.evalHostRule(def, host)
		if err != nil {
			log.Printf("script %s: hostrule panicked, skipping: %v", s.ID, err)
			continue
		}
		if !matched {
			continue
		}

		tasks = append(tasks, newTask(
			atomic.AddInt64(&nextTaskID, 1),
			s, HostTask, copyHost(host), Port{}, s.Runlevel, def,
		))
	}
	return tasks
}

// PortTasks evaluates every script's PortRule against host/port and
// returns one Task per match.
func (f *TaskFactory) PortTasks(scripts []*Script, host Host, port Port) []*Task {
	var tasks []*Task
	for _, s := range scripts {
		def := s.newEnvironment()
		if def.PortRule == nil {
			continue
		}

		matched, err := f.evalPortRule(def, host, port)
		if err != nil {
			log.Printf("script %s: portrule panicked, skipping: %v", s.ID, err)
			continue
		}
		if !matched {
			continue
		}

		tasks = append(tasks, newTask(
			atomic.AddInt64(&nextTaskID, 1),
			s, PortTask, copyHost(host), copyPort(port), s.Runlevel, def,
		))
	}
	return tasks
}

func (f *TaskFactory) evalHostRule(def *ScriptDef, host Host) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v\n%s", r, debug.Stack())
		}
	}()
	return def.HostRule(copyHost(host)), nil
}

func (f *TaskFactory) evalPortRule(def *ScriptDef, host Host, port Port) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v\n%s", r, debug.Stack())
		}
	}()
	return def.PortRule(copyHost(host), copyPort(port)), nil
}
