package nse

// Adapted from the teacher's ScriptSelector (internal/nse/script_selector.go):
// the same canonicalized-rule-table shape, but resolving categories,
// filenames and directories against the Script Index (§4.2 "Selector")
// instead of filtering a protocol-tagged manifest.

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Selector resolves user rules against the Script Index into an ordered
// list of loaded Scripts (§4.2).
type Selector struct {
	api HostAPI
}

// NewSelector creates a Selector bound to the host program's API.
func NewSelector(api HostAPI) *Selector {
	return &Selector{api: api}
}

// Select runs the full algorithm of §4.2: reserved-rule rejection,
// default-mode injection, internally-requested reserved rules,
// index-driven loading, then by-name loading.
func (s *Selector) Select(ctx context.Context, userRules []string) ([]*Script, error) {
	if err := s.checkReserved(userRules); err != nil {
		return nil, err
	}

	rules := append([]string(nil), userRules...)
	if len(rules) == 0 && s.api.Default() {
		rules = append(rules, "default")
	}
	if s.api.ScriptVersion() {
		rules = append(rules, "version")
	}

	table := make(map[string]*ruleEntry, len(rules))
	for _, r := range rules {
		lower := strings.ToLower(r)
		if _, exists := table[lower]; !exists {
			table[lower] = &ruleEntry{original: r}
		}
	}

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}

	var result []*Script
	loadedFiles := make(map[string]bool)

	_, wantsAll := table["all"]

	for _, entry := range idx.Entries {
		lowerCat := strings.ToLower(entry.Category)
		rule, matchedCategory := table[lowerCat]
		matchedAll := wantsAll && lowerCat != "version"

		if !matchedCategory && !matchedAll {
			continue
		}
		if matchedCategory {
			rule.loaded = true
		}

		abs := s.resolvePath(entry.Filename)
		if loadedFiles[abs] {
			continue
		}

		script, err := LoadScript(abs)
		if err != nil {
			return nil, err
		}
		loadedFiles[abs] = true
		result = append(result, script)
	}

	// By-name loading: anything not satisfied by the index pass.
	for lower, rule := range table {
		if rule.loaded || lower == "all" {
			continue
		}

		scripts, err := s.loadByName(rule.original, loadedFiles)
		if err != nil {
			return nil, err
		}
		rule.loaded = true
		result = append(result, scripts...)
	}

	return result, nil
}

func (s *Selector) checkReserved(userRules []string) error {
	for _, r := range userRules {
		if reserved, reason := isReserved(strings.ToLower(r)); reserved {
			return fmt.Errorf("explicitly specifying rule '%s' is prohibited: %s", r, reason)
		}
	}
	return nil
}

// loadIndex resolves the Script Index, trying the cache key
// "nse:script-index" first so repeated scans skip re-reading the index
// file from disk (§4.9 "Script Index Cache"). A HostAPI that offers no
// cache falls back to reading the index file directly, rebuilding it once
// on a miss.
func (s *Selector) loadIndex(ctx context.Context) (*ScriptIndex, error) {
	if cache := s.api.IndexCache(); cache != nil {
		return cache.LoadIndex(ctx, s.api)
	}

	rebuilt := false
	kind, _ := s.api.FetchFileAbsolute(s.api.ScriptDBPath())
	if kind == NoSuchFile {
		if !s.api.UpdateDB() {
			return nil, fmt.Errorf("failed to build script index at %s", s.api.ScriptDBPath())
		}
		rebuilt = true
	}

	idx, err := LoadScriptIndex(s.api.ScriptDBPath())
	if err != nil {
		if rebuilt {
			return nil, fmt.Errorf("script index still unavailable after rebuild: %w", err)
		}
		if !s.api.UpdateDB() {
			return nil, fmt.Errorf("script index unavailable: %w", err)
		}
		idx, err = LoadScriptIndex(s.api.ScriptDBPath())
		if err != nil {
			return nil, fmt.Errorf("script index still unavailable after rebuild: %w", err)
		}
	}

	return idx, nil
}

func (s *Selector) resolvePath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	if _, ok := builtinScripts[filename]; ok {
		return filename
	}
	return filepath.Join(DefaultScriptBase, filename)
}

// loadByName resolves a single rule as a file (optionally appending
// ".nse") or a directory (§4.2.6).
func (s *Selector) loadByName(rule string, loadedFiles map[string]bool) ([]*Script, error) {
	kind, abs := s.api.FetchFileAbsolute(rule)
	if kind == NoSuchFile {
		kind, abs = s.api.FetchFileAbsolute(rule + ".nse")
	}

	switch kind {
	case RegularFile:
		if loadedFiles[abs] {
			return nil, nil
		}
		script, err := LoadScript(abs)
		if err != nil {
			return nil, err
		}
		loadedFiles[abs] = true
		return []*Script{script}, nil

	case Directory:
		var scripts []*Script
		for _, file := range s.api.DumpDir(abs) {
			if loadedFiles[file] {
				continue
			}
			script, err := LoadScript(file)
			if err != nil {
				return nil, err
			}
			loadedFiles[file] = true
			scripts = append(scripts, script)
		}
		return scripts, nil

	default:
		return nil, fmt.Errorf("No such category, filename or directory: %s", rule)
	}
}
