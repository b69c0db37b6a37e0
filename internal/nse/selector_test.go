package nse

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestSelectorRejectsReservedRule(t *testing.T) {
	api := newFakeHostAPI()
	if _, err := NewSelector(api).Select(context.Background(), []string{"version"}); err == nil {
		t.Fatal("expected error explicitly selecting the reserved 'version' rule")
	}
}

func TestSelectorDefaultModeInjectsDefaultCategory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.json")
	idx := &ScriptIndex{Entries: []IndexEntry{
		{Category: "default", Filename: "/scripts/default1.nse"},
		{Category: "discovery", Filename: "/scripts/discovery1.nse"},
	}}
	if err := SaveScriptIndex(idx, dbPath); err != nil {
		t.Fatalf("SaveScriptIndex: %v", err)
	}

	restore := stubScripts(map[string]func() *ScriptDef{
		"/scripts/default1.nse":   func() *ScriptDef { return basicDef("default") },
		"/scripts/discovery1.nse": func() *ScriptDef { return basicDef("discovery") },
	})
	defer restore()

	api := newFakeHostAPI()
	api.dbPath = dbPath
	api.defaultMode = true
	api.files[dbPath] = RegularFile

	scripts, err := NewSelector(api).Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(scripts) != 1 || scripts[0].ID != "default1" {
		t.Fatalf("expected only default1 to be selected, got %v", scripts)
	}
}

func TestSelectorVersionModeInjectsVersionCategory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.json")
	idx := &ScriptIndex{Entries: []IndexEntry{
		{Category: "version", Filename: "/scripts/versioncheck.nse"},
	}}
	if err := SaveScriptIndex(idx, dbPath); err != nil {
		t.Fatalf("SaveScriptIndex: %v", err)
	}

	restore := stubScripts(map[string]func() *ScriptDef{
		"/scripts/versioncheck.nse": func() *ScriptDef { return basicDef("version") },
	})
	defer restore()

	api := newFakeHostAPI()
	api.dbPath = dbPath
	api.scriptVersion = true
	api.files[dbPath] = RegularFile

	scripts, err := NewSelector(api).Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(scripts) != 1 || scripts[0].ID != "versioncheck" {
		t.Fatalf("expected versioncheck to be selected via the internally injected 'version' rule, got %v", scripts)
	}
}

func TestSelectorAllExcludesVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.json")
	idx := &ScriptIndex{Entries: []IndexEntry{
		{Category: "default", Filename: "/scripts/a.nse"},
		{Category: "discovery", Filename: "/scripts/b.nse"},
		{Category: "version", Filename: "/scripts/c.nse"},
	}}
	if err := SaveScriptIndex(idx, dbPath); err != nil {
		t.Fatalf("SaveScriptIndex: %v", err)
	}

	restore := stubScripts(map[string]func() *ScriptDef{
		"/scripts/a.nse": func() *ScriptDef { return basicDef("default") },
		"/scripts/b.nse": func() *ScriptDef { return basicDef("discovery") },
		"/scripts/c.nse": func() *ScriptDef { return basicDef("version") },
	})
	defer restore()

	api := newFakeHostAPI()
	api.dbPath = dbPath
	api.files[dbPath] = RegularFile

	scripts, err := NewSelector(api).Select(context.Background(), []string{"all"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("expected 'all' to select every non-version category, got %v", scripts)
	}
}

func TestSelectorLoadsByFilename(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.json")
	if err := SaveScriptIndex(&ScriptIndex{}, dbPath); err != nil {
		t.Fatalf("SaveScriptIndex: %v", err)
	}

	restore := stubScripts(map[string]func() *ScriptDef{
		"myscript.nse": func() *ScriptDef { return basicDef("custom") },
	})
	defer restore()

	api := newFakeHostAPI()
	api.dbPath = dbPath
	api.files[dbPath] = RegularFile
	api.files["myscript.nse"] = RegularFile

	scripts, err := NewSelector(api).Select(context.Background(), []string{"myscript"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(scripts) != 1 || scripts[0].ID != "myscript" {
		t.Fatalf("expected myscript to load by filename fallback, got %v", scripts)
	}
}

func TestSelectorLoadsDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.json")
	if err := SaveScriptIndex(&ScriptIndex{}, dbPath); err != nil {
		t.Fatalf("SaveScriptIndex: %v", err)
	}

	restore := stubScripts(map[string]func() *ScriptDef{
		"mydir/a.nse": func() *ScriptDef { return basicDef("custom") },
		"mydir/b.nse": func() *ScriptDef { return basicDef("custom") },
	})
	defer restore()

	api := newFakeHostAPI()
	api.dbPath = dbPath
	api.files[dbPath] = RegularFile
	api.files["mydir"] = Directory
	api.dirs["mydir"] = []string{"mydir/a.nse", "mydir/b.nse"}

	scripts, err := NewSelector(api).Select(context.Background(), []string{"mydir"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("expected both scripts under mydir to be loaded, got %v", scripts)
	}
}

func TestSelectorErrorsOnUnknownRule(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.json")
	if err := SaveScriptIndex(&ScriptIndex{}, dbPath); err != nil {
		t.Fatalf("SaveScriptIndex: %v", err)
	}

	api := newFakeHostAPI()
	api.dbPath = dbPath
	api.files[dbPath] = RegularFile

	if _, err := NewSelector(api).Select(context.Background(), []string{"nonexistent-category"}); err == nil {
		t.Fatal("expected an error for a rule matching no category, filename, or directory")
	}
}

func TestSelectorRebuildsIndexOnFirstMiss(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.json")
	// No file written yet: FetchFileAbsolute reports NoSuchFile, so the
	// Selector must call UpdateDB() before it can load anything.

	api := newFakeHostAPI()
	api.dbPath = dbPath
	api.updateDBFails = false

	// UpdateDB doesn't actually create dbPath in this fake, so the
	// subsequent LoadScriptIndex still fails and Select should report an
	// error rather than panic.
	if _, err := NewSelector(api).Select(context.Background(), nil); err == nil {
		t.Fatal("expected an error when the script index cannot be built or read")
	}
	if api.updateDBCalls == 0 {
		t.Error("expected the Selector to attempt an index rebuild on a missing index file")
	}
}

// TestSelectorPrefersCachedIndexOverDisk proves loadIndex actually goes
// through IndexCache rather than reading ScriptDBPath() directly: the disk
// file is never written, only the cache is primed, and Select must still
// succeed.
func TestSelectorPrefersCachedIndexOverDisk(t *testing.T) {
	restore := stubScripts(map[string]func() *ScriptDef{
		"/scripts/cached.nse": func() *ScriptDef { return basicDef("discovery") },
	})
	defer restore()

	kv := newFakeKVStore()
	cache := NewIndexCache(kv)
	idxJSON, err := json.Marshal(&ScriptIndex{Entries: []IndexEntry{
		{Category: "discovery", Filename: "/scripts/cached.nse"},
	}})
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if err := kv.SetValue(context.Background(), ValKeyIndexKey, string(idxJSON)); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	api := newFakeHostAPI()
	api.cache = cache
	api.dbPath = "/index/that/does/not/exist.json" // never read: cache hit short-circuits it

	scripts, err := NewSelector(api).Select(context.Background(), []string{"discovery"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(scripts) != 1 || scripts[0].ID != "cached" {
		t.Fatalf("expected the cached index entry to be selected, got %v", scripts)
	}
	if api.updateDBCalls != 0 {
		t.Error("expected no UpdateDB call when the cache already holds the index")
	}
}
