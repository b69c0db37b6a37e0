package nse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SiriusScan/go-api/sirius"
)

const (
	// IndexFile is the default on-disk name of the Script Index file.
	IndexFile = "index.json"
	// ValKeyIndexKey is the key used to cache the Script Index in ValKey.
	ValKeyIndexKey = "nse:script-index"
)

// DefaultScriptBase is the base directory that relative Script Index entry
// filenames are resolved against, and the default script directory of the
// command-line tools.
var DefaultScriptBase = "/opt/sirius/nse/scripts"

// Host is the value snapshot of a scanned host handed to tasks. It is a
// plain copy, never the scanner's canonical record: mutating it inside one
// task must not be visible to any other task (§3 "Ownership").
type Host = sirius.Host

// Port is the value snapshot of a single open port on a Host.
type Port = sirius.Port

// copyHost returns a deep copy of h suitable for handing to a Task.
func copyHost(h Host) Host {
	out := h
	if h.Ports != nil {
		out.Ports = make([]sirius.Port, len(h.Ports))
		copy(out.Ports, h.Ports)
	}
	if h.Services != nil {
		out.Services = make([]sirius.Service, len(h.Services))
		copy(out.Services, h.Services)
	}
	if h.Vulnerabilities != nil {
		out.Vulnerabilities = make([]sirius.Vulnerability, len(h.Vulnerabilities))
		copy(out.Vulnerabilities, h.Vulnerabilities)
	}
	return out
}

// copyPort returns a copy of p.
func copyPort(p Port) Port {
	return p
}

// TaskKind distinguishes hostrule tasks from portrule tasks (§3 "Task").
type TaskKind int

const (
	// HostTask is produced by a script's hostrule predicate.
	HostTask TaskKind = iota
	// PortTask is produced by a script's portrule predicate.
	PortTask
)

func (k TaskKind) String() string {
	switch k {
	case HostTask:
		return "host"
	case PortTask:
		return "port"
	default:
		return "unknown"
	}
}

// HostRuleFunc decides whether a script applies to a host.
type HostRuleFunc func(host Host) bool

// PortRuleFunc decides whether a script applies to a (host, port) pair.
type PortRuleFunc func(host Host, port Port) bool

// ActionFunc is a script's unit of work. It runs cooperatively: the Env it
// receives is how it suspends at network wait points. A returned empty
// string means "no output to report".
type ActionFunc func(env *Env, host Host, port Port) (string, error)

// ScriptDef is the set of bindings a script's body populates into a fresh
// environment when invoked (§4.1 "compiled script body"). Each call to a
// script's NewScript constructor must return a new ScriptDef with its own
// closures, so per-task globals never leak across concurrent tasks.
type ScriptDef struct {
	Description string
	Author      string
	License     string
	Categories  []string
	Runlevel    float64 // 0 means "unset", defaults to 1 at load time
	HostRule    HostRuleFunc
	PortRule    PortRuleFunc
	Action      ActionFunc
}

// validate checks the structural invariants §4.1.4 requires of a loaded
// script, naming the offending field in the returned error.
func (d *ScriptDef) validate(filename string) error {
	if d.Description == "" {
		return fmt.Errorf("script %s: missing required field 'description'", filename)
	}
	if d.Action == nil {
		return fmt.Errorf("script %s: missing required field 'action'", filename)
	}
	if len(d.Categories) == 0 {
		return fmt.Errorf("script %s: 'categories' must be a non-empty sequence of strings", filename)
	}
	for _, c := range d.Categories {
		if c == "" {
			return fmt.Errorf("script %s: 'categories' entries must be non-empty strings", filename)
		}
	}
	if d.HostRule == nil && d.PortRule == nil {
		return fmt.Errorf("script %s: must declare at least one of hostrule or portrule", filename)
	}
	return nil
}

// Script is the immutable, load-once descriptor for one script file
// (§3 "Script"). It is shared read-only across every Task built from it.
type Script struct {
	Filename      string // absolute path
	Basename      string
	ShortBasename string // basename without the .nse suffix
	ID            string // == ShortBasename

	Categories  []string
	Author      string
	License     string
	Description string

	Runlevel int // ceil(declared runlevel), defaults to 1

	newScript func() *ScriptDef
}

// newEnvironment re-invokes the script's body into a fresh *ScriptDef,
// exactly as the source re-evaluates the body into a fresh environment per
// task (§4.1, last paragraph).
func (s *Script) newEnvironment() *ScriptDef {
	return s.newScript()
}

// TaskState is a Task's position in the Scheduler's state machine (§3).
type TaskState int

const (
	StateReady TaskState = iota
	StateRunning
	StateWaiting
	StatePending
	StateDone
)

func (s TaskState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// IndexEntry is one record of the Script Index (§3), produced by an
// external generator and consumed by the Selector.
type IndexEntry struct {
	Category string `json:"category"`
	Filename string `json:"filename"`
}

// ScriptIndex is the on-disk/cached form of the Script Index: a flat list
// of (category, filename) records, grounded on the teacher's
// manifest.json shape (one JSON document, loaded with os.ReadFile +
// json.Unmarshal).
type ScriptIndex struct {
	Entries []IndexEntry `json:"entries"`
}

// LoadScriptIndex loads the Script Index from the specified path.
func LoadScriptIndex(path string) (*ScriptIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script index: %w", err)
	}

	var idx ScriptIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse script index: %w", err)
	}

	return &idx, nil
}

// SaveScriptIndex writes the Script Index to the specified path.
func SaveScriptIndex(idx *ScriptIndex, path string) error {
	data, err := json.MarshalIndent(idx, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal script index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create script index directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write script index: %w", err)
	}

	return nil
}

// ruleEntry is the Selector's canonical rule table row (§9 "Dynamic rule
// table"): keyed by lower-cased token, it remembers the caller's original
// casing and whether the rule has been satisfied.
type ruleEntry struct {
	original string
	loaded   bool
}
