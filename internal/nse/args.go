package nse

import (
	"fmt"
	"regexp"
	"strings"
)

var bareIdentifier = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ScriptArgs is the parsed form of the host program's --script-args string
// (§4.8 "Argument Preloader"): a flat key-to-value mapping exposed to
// scripts.
type ScriptArgs map[string]string

// ParseScriptArgs parses a comma-separated key=value string. Bare
// identifier values are accepted as-is; anything else has surrounding
// single or double quotes stripped (quoting is only a parsing nicety here,
// not a security boundary).
// Malformed input is fatal, per §4.8, with the offending text included.
func ParseScriptArgs(raw string) (ScriptArgs, error) {
	args := make(ScriptArgs)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed script argument %q: expected key=value", pair)
		}

		key := strings.TrimSpace(pair[:eq])
		value := strings.TrimSpace(pair[eq+1:])
		if key == "" {
			return nil, fmt.Errorf("malformed script argument %q: empty key", pair)
		}

		if !bareIdentifier.MatchString(value) {
			value = strings.Trim(value, `"'`)
		}

		args[key] = value
	}

	return args, nil
}
