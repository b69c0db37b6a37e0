package nse

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"plugin"
	"strings"
)

// scriptConstructor is the shape every script file must export: a
// zero-argument function returning a fresh *ScriptDef. Calling it is the
// "compiled script body" of §4.1 — each call yields a private environment.
type scriptConstructor = func() *ScriptDef

// openPlugin resolves a script's absolute filename to its constructor.
// It is a function variable so tests can substitute an in-memory registry
// instead of touching the filesystem, the same testability seam the
// teacher uses for its external tool invocations (see modules/nmap's
// `var Scan = scanImpl` and modules/naabu's identical pattern).
var openPlugin = defaultOpenPlugin

// builtinScripts lets compiled-in scripts (internal/scripts) register
// themselves under their own absolute path so the Loader never needs to
// special-case them: a built-in is loaded through the exact same code path
// as an on-disk .so plugin.
var builtinScripts = map[string]scriptConstructor{}

// RegisterBuiltin makes a compiled-in script constructor available to the
// Loader under filename, as if it had been compiled to a plugin at that
// path. Used by internal/scripts' init() functions.
func RegisterBuiltin(filename string, ctor scriptConstructor) {
	builtinScripts[filename] = ctor
}

// IsBuiltinScript reports whether filename names a compiled-in script, so a
// HostAPI implementation can resolve it without touching the filesystem.
func IsBuiltinScript(filename string) bool {
	_, ok := builtinScripts[filename]
	return ok
}

func defaultOpenPlugin(filename string) (scriptConstructor, error) {
	if ctor, ok := builtinScripts[filename]; ok {
		return ctor, nil
	}

	p, err := plugin.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open script plugin: %w", err)
	}

	sym, err := p.Lookup("NewScript")
	if err != nil {
		return nil, fmt.Errorf("script %s does not export NewScript: %w", filename, err)
	}

	ctor, ok := sym.(func() *ScriptDef)
	if !ok {
		return nil, fmt.Errorf("script %s: NewScript has the wrong signature", filename)
	}

	return ctor, nil
}

// LoadScript parses one script file and returns its immutable descriptor
// (§4.1 "Script Loader").
func LoadScript(filename string) (*Script, error) {
	if !strings.HasSuffix(filename, ".nse") {
		log.Printf("warning: script file %s does not have the .nse extension", filename)
	}

	ctor, err := openPlugin(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load script %s: %w", filename, err)
	}

	// Invoke the body once, in a throwaway environment, purely to inspect
	// the declared fields (§4.1.3).
	def := ctor()
	if def == nil {
		return nil, fmt.Errorf("script %s: NewScript returned nil", filename)
	}

	if err := def.validate(filename); err != nil {
		return nil, err
	}

	basename := filepath.Base(filename)
	short := strings.TrimSuffix(basename, ".nse")

	runlevel := def.Runlevel
	if runlevel <= 0 {
		runlevel = 1
	}

	return &Script{
		Filename:      filename,
		Basename:      basename,
		ShortBasename: short,
		ID:            short,
		Categories:    append([]string(nil), def.Categories...),
		Author:        def.Author,
		License:       def.License,
		Description:   def.Description,
		Runlevel:      int(math.Ceil(runlevel)),
		newScript:     ctor,
	}, nil
}
