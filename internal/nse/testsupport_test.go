package nse

import (
	"context"
	"errors"
	"sync"

	"github.com/SiriusScan/go-api/sirius/store"
)

// fakeHostAPI is an in-memory HostAPI good enough to drive the Selector,
// Scheduler and Engine in tests without a real scanner or filesystem.
type fakeHostAPI struct {
	mu sync.Mutex

	files map[string]FileKind
	dirs  map[string][]string

	dbPath        string
	scriptVersion bool
	defaultMode   bool
	scriptArgs    string
	updateDBCalls int
	updateDBFails bool

	ports map[string][]Port

	timeoutClocks map[string]bool
	timedOutHosts map[string]bool

	hostOutputs []outputRecord
	portOutputs []outputRecord

	verbosity int
	debugging int

	cache *IndexCache
}

type outputRecord struct {
	host     string
	port     int
	scriptID string
	text     string
}

func newFakeHostAPI() *fakeHostAPI {
	return &fakeHostAPI{
		files:         make(map[string]FileKind),
		dirs:          make(map[string][]string),
		ports:         make(map[string][]Port),
		timeoutClocks: make(map[string]bool),
		timedOutHosts: make(map[string]bool),
		dbPath:        "/fake/index.json",
	}
}

func (f *fakeHostAPI) FetchFileAbsolute(path string) (FileKind, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind, ok := f.files[path]; ok {
		return kind, path
	}
	return NoSuchFile, ""
}

func (f *fakeHostAPI) UpdateDB() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateDBCalls++
	return !f.updateDBFails
}

func (f *fakeHostAPI) ScriptDBPath() string { return f.dbPath }
func (f *fakeHostAPI) ScriptVersion() bool  { return f.scriptVersion }
func (f *fakeHostAPI) Default() bool        { return f.defaultMode }
func (f *fakeHostAPI) ScriptArgs() string   { return f.scriptArgs }

func (f *fakeHostAPI) ScanProgressMeter(name string) ProgressMeter { return &fakeProgressMeter{} }

func (f *fakeHostAPI) NsockLoop(ctx context.Context, budgetMillis int) {}

func (f *fakeHostAPI) KeyWasPressed() bool { return false }

func (f *fakeHostAPI) Ports(host Host) []Port {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ports[host.IP]
}

func (f *fakeHostAPI) StartTimeoutClock(host Host) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeoutClocks[host.IP] = true
}

func (f *fakeHostAPI) StopTimeoutClock(host Host) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.timeoutClocks, host.IP)
}

func (f *fakeHostAPI) TimedOut(host Host) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timedOutHosts[host.IP]
}

func (f *fakeHostAPI) HostSetOutput(host Host, scriptID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hostOutputs = append(f.hostOutputs, outputRecord{host: host.IP, scriptID: scriptID, text: text})
}

func (f *fakeHostAPI) PortSetOutput(host Host, port Port, scriptID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portOutputs = append(f.portOutputs, outputRecord{host: host.IP, port: port.ID, scriptID: scriptID, text: text})
}

func (f *fakeHostAPI) DumpDir(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path]
}

func (f *fakeHostAPI) Verbosity() int { return f.verbosity }
func (f *fakeHostAPI) Debugging() int { return f.debugging }

// IndexCache returns whatever cache the test wired in, or nil to exercise
// the Selector's documented no-cache fallback path.
func (f *fakeHostAPI) IndexCache() *IndexCache { return f.cache }

// fakeKVStore is an in-memory store.KVStore, grounded on the teacher's own
// mockKVStore/fakeKVStore test doubles (internal/nse/nse_test.go,
// internal/scan/updater_test.go), used here to back a real IndexCache in
// tests instead of faking IndexCache itself.
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKVStore() *fakeKVStore { return &fakeKVStore{data: make(map[string]string)} }

func (k *fakeKVStore) GetValue(ctx context.Context, key string) (store.ValkeyResponse, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	val, ok := k.data[key]
	if !ok {
		return store.ValkeyResponse{}, errors.New("key not found")
	}
	var resp store.ValkeyResponse
	resp.Message.Value = val
	return resp, nil
}

func (k *fakeKVStore) SetValue(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

func (k *fakeKVStore) DeleteValue(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

func (k *fakeKVStore) Close() error { return nil }

var _ HostAPI = (*fakeHostAPI)(nil)

type fakeProgressMeter struct{}

func (*fakeProgressMeter) PrintStats(fraction float64)            {}
func (*fakeProgressMeter) PrintStatsIfNecessary(fraction float64) {}
func (*fakeProgressMeter) MayBePrinted() bool                     { return false }
func (*fakeProgressMeter) EndTask()                               {}

// stubScripts substitutes openPlugin with a lookup table for the duration
// of the calling test, falling back to the real resolver (builtins, then
// plugin.Open) for any filename not in the table.
func stubScripts(scripts map[string]func() *ScriptDef) func() {
	old := openPlugin
	openPlugin = func(filename string) (scriptConstructor, error) {
		if ctor, ok := scripts[filename]; ok {
			return ctor, nil
		}
		return old(filename)
	}
	return func() { openPlugin = old }
}

func noopAction(env *Env, host Host, port Port) (string, error) { return "", nil }

func basicDef(categories ...string) *ScriptDef {
	return &ScriptDef{
		Description: "test script",
		Categories:  categories,
		HostRule:    func(Host) bool { return true },
		Action:      noopAction,
	}
}
