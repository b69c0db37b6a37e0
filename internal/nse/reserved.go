package nse

// reservedRules are rule tokens a caller may never supply explicitly
// (§4.2.1); they are injected internally by the Selector when the host
// program's mode flags request them (§4.2.3).
//
// Keyed the same way as the teacher's script blacklist (a plain
// map[string]string lookup table), but the value here documents *why* the
// rule is reserved rather than *why a script is excluded*.
var reservedRules = map[string]string{
	"version": "version detection is controlled by the scanner's version-detection mode, not by rule selection",
}

// isReserved reports whether the lower-cased rule token is reserved.
func isReserved(lowerRule string) (bool, string) {
	reason, ok := reservedRules[lowerRule]
	return ok, reason
}
