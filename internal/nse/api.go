package nse

import "context"

// FileKind is the result of resolving a rule token against the
// filesystem (§6 "fetchfile_absolute").
type FileKind int

const (
	NoSuchFile FileKind = iota
	RegularFile
	Directory
)

// ProgressMeter mirrors the host program's per-scan progress handle
// (§6 "scan_progress_meter").
type ProgressMeter interface {
	PrintStats(fraction float64)
	PrintStatsIfNecessary(fraction float64)
	MayBePrinted() bool
	EndTask()
}

// HostAPI is everything the engine needs from its embedding host program
// (§6 "Embedded entry point"). The host program implements it once; the
// engine never reaches outside this interface plus the Go standard
// library.
type HostAPI interface {
	// FetchFileAbsolute resolves a rule token to an absolute path, or
	// reports that nothing matches.
	FetchFileAbsolute(path string) (FileKind, string)

	// UpdateDB (re)generates the Script Index on disk. Returns false if
	// the rebuild itself failed.
	UpdateDB() bool

	// ScriptDBPath is the absolute path of the Script Index file.
	ScriptDBPath() string
	// ScriptVersion reports whether the scanner's version-detection mode
	// is enabled (injects the reserved "version" rule).
	ScriptVersion() bool
	// Default reports whether the scanner's default-script mode is on
	// (injects "default" into an empty rule list).
	Default() bool

	// ScriptArgs is the raw --script-args string.
	ScriptArgs() string

	// ScanProgressMeter returns a named progress handle.
	ScanProgressMeter(name string) ProgressMeter

	// NsockLoop drives the Async I/O layer for up to the given budget.
	NsockLoop(ctx context.Context, budgetMillis int)

	// KeyWasPressed reports whether the operator requested a status line
	// since the last call.
	KeyWasPressed() bool

	// Ports lists a host's open ports in scan order.
	Ports(host Host) []Port

	// StartTimeoutClock / StopTimeoutClock / TimedOut drive per-host
	// timeout supervision (§4.6).
	StartTimeoutClock(host Host)
	StopTimeoutClock(host Host)
	TimedOut(host Host) bool

	// HostSetOutput / PortSetOutput deliver sanitized script output.
	HostSetOutput(host Host, scriptID, text string)
	PortSetOutput(host Host, port Port, scriptID, text string)

	// DumpDir lists every file under a directory, in filesystem
	// enumeration order, as absolute paths.
	DumpDir(path string) []string

	// Verbosity / Debugging mirror the CLI surface observed in §6.
	Verbosity() int
	Debugging() int

	// IndexCache returns the host program's Script Index cache, shared
	// across calls so repeated scans skip re-reading the index file from
	// disk (§4.9). May return nil if the host program has no cache to
	// offer, in which case the Selector reads the index directly.
	IndexCache() *IndexCache
}
