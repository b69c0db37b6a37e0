package scan

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirius-nse/engine/internal/nse"
	"github.com/sirius-nse/engine/internal/scripts"
	"github.com/SiriusScan/go-api/sirius/store"
)

// NSEHostAPI wires the Network Scripting Engine to ScanManager's own
// filesystem, KV store and worker-pool conventions. It implements
// internal/nse's HostAPI contract (§6 "Embedded entry point"); script
// output can additionally reach a ResultSink given to the engine.
type NSEHostAPI struct {
	scriptDir     string
	indexPath     string
	scriptVersion bool
	defaultMode   bool
	scriptArgs    string
	verbosity     int
	debugging     int

	index *nse.IndexCache

	mu      sync.Mutex
	clocks  map[string]*time.Timer
	expired map[string]bool
	timeout time.Duration
}

// NewNSEHostAPI builds a HostAPI rooted at scriptDir, caching its Script
// Index in kv. hostTimeout bounds how long a single host's scripts may run
// before the Scheduler starts dropping their waiting tasks (§4.6).
func NewNSEHostAPI(kv store.KVStore, scriptDir string, hostTimeout time.Duration) *NSEHostAPI {
	if scriptDir == "" {
		scriptDir = nse.DefaultScriptBase
	}
	if hostTimeout <= 0 {
		hostTimeout = 5 * time.Minute
	}
	return &NSEHostAPI{
		scriptDir: scriptDir,
		indexPath: filepath.Join(scriptDir, nse.IndexFile),
		index:     nse.NewIndexCache(kv),
		clocks:    make(map[string]*time.Timer),
		expired:   make(map[string]bool),
		timeout:   hostTimeout,
	}
}

// WithRules configures version-detection and default-script injection
// ahead of a scan (mirrors Nmap's -sV/-sC CLI surface, §6).
func (a *NSEHostAPI) WithRules(scriptVersion, defaultMode bool, scriptArgs string) *NSEHostAPI {
	a.scriptVersion = scriptVersion
	a.defaultMode = defaultMode
	a.scriptArgs = scriptArgs
	return a
}

func (a *NSEHostAPI) FetchFileAbsolute(path string) (nse.FileKind, string) {
	if nse.IsBuiltinScript(path) {
		return nse.RegularFile, path
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(a.scriptDir, path)
	}

	info, err := os.Stat(candidate)
	if err != nil {
		return nse.NoSuchFile, ""
	}
	if info.IsDir() {
		return nse.Directory, candidate
	}
	return nse.RegularFile, candidate
}

// UpdateDB rebuilds the Script Index by walking scriptDir for *.nse plugins
// and merging in the compiled-in pack from internal/scripts (§4.2, §4.12).
func (a *NSEHostAPI) UpdateDB() bool {
	var entries []nse.IndexEntry

	err := filepath.WalkDir(a.scriptDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole rebuild
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".nse") {
			return nil
		}
		script, loadErr := nse.LoadScript(path)
		if loadErr != nil {
			log.Printf("nse: skipping %s during index rebuild: %v", path, loadErr)
			return nil
		}
		for _, category := range script.Categories {
			entries = append(entries, nse.IndexEntry{Category: category, Filename: path})
		}
		return nil
	})
	if err != nil {
		log.Printf("nse: index rebuild walk failed: %v", err)
	}

	entries = append(entries, scripts.Entries()...)

	if err := nse.SaveScriptIndex(&nse.ScriptIndex{Entries: entries}, a.indexPath); err != nil {
		log.Printf("nse: failed to save script index: %v", err)
		return false
	}

	if err := a.index.InvalidateIndex(context.Background()); err != nil {
		log.Printf("nse: failed to invalidate cached script index: %v", err)
	}
	return true
}

func (a *NSEHostAPI) ScriptDBPath() string    { return a.indexPath }
func (a *NSEHostAPI) ScriptVersion() bool     { return a.scriptVersion }
func (a *NSEHostAPI) Default() bool           { return a.defaultMode }
func (a *NSEHostAPI) ScriptArgs() string      { return a.scriptArgs }
func (a *NSEHostAPI) Verbosity() int          { return a.verbosity }
func (a *NSEHostAPI) Debugging() int          { return a.debugging }
func (a *NSEHostAPI) IndexCache() *nse.IndexCache { return a.index }

func (a *NSEHostAPI) ScanProgressMeter(name string) nse.ProgressMeter {
	return &logProgressMeter{name: name}
}

// NsockLoop stands in for libnsock's event loop: the real network waits run
// on internal/nse's own AsyncIO goroutine pool, so this just paces the
// Scheduler's polling tick (§4.11 notes AsyncIO owns the sockets; NsockLoop
// only owns the budget).
func (a *NSEHostAPI) NsockLoop(ctx context.Context, budgetMillis int) {
	select {
	case <-time.After(time.Duration(budgetMillis) * time.Millisecond):
	case <-ctx.Done():
	}
}

func (a *NSEHostAPI) KeyWasPressed() bool { return false }

func (a *NSEHostAPI) Ports(host nse.Host) []nse.Port {
	var open []nse.Port
	for _, p := range host.Ports {
		if p.State == "open" {
			open = append(open, p)
		}
	}
	return open
}

func (a *NSEHostAPI) StartTimeoutClock(host nse.Host) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.clocks[host.IP]; exists {
		return
	}
	ip := host.IP
	a.clocks[ip] = time.AfterFunc(a.timeout, func() {
		a.mu.Lock()
		a.expired[ip] = true
		a.mu.Unlock()
	})
}

func (a *NSEHostAPI) StopTimeoutClock(host nse.Host) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if timer, exists := a.clocks[host.IP]; exists {
		timer.Stop()
		delete(a.clocks, host.IP)
	}
	delete(a.expired, host.IP)
}

func (a *NSEHostAPI) TimedOut(host nse.Host) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expired[host.IP]
}

func (a *NSEHostAPI) HostSetOutput(host nse.Host, scriptID, text string) {
	log.Printf("nse: %s: %s:\n%s", host.IP, scriptID, text)
}

func (a *NSEHostAPI) PortSetOutput(host nse.Host, port nse.Port, scriptID, text string) {
	log.Printf("nse: %s:%d: %s:\n%s", host.IP, port.ID, scriptID, text)
}

func (a *NSEHostAPI) DumpDir(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files
}

var _ nse.HostAPI = (*NSEHostAPI)(nil)

// logProgressMeter is a minimal nse.ProgressMeter backed by log.Printf.
// Grounded on nothing in the pack: the teacher's worker pool has no
// progress-reporting surface at all, so this is the simplest stdlib
// rendition that satisfies the interface. See DESIGN.md.
type logProgressMeter struct {
	name      string
	mu        sync.Mutex
	lastPrint time.Time
}

func (m *logProgressMeter) PrintStats(fraction float64) {
	log.Printf("nse: %s progress: %.1f%%", m.name, fraction*100)
	m.mu.Lock()
	m.lastPrint = time.Now()
	m.mu.Unlock()
}

func (m *logProgressMeter) PrintStatsIfNecessary(fraction float64) {
	m.mu.Lock()
	due := time.Since(m.lastPrint) > 5*time.Second
	m.mu.Unlock()
	if due {
		m.PrintStats(fraction)
	}
}

func (m *logProgressMeter) MayBePrinted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastPrint) > 5*time.Second
}

func (m *logProgressMeter) EndTask() {
	log.Printf("nse: %s complete", m.name)
}
