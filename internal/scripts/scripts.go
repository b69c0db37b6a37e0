// Package scripts is the engine's built-in script pack (§4.12): a small
// set of Go-native scripts exercising hostrule/portrule/runlevel semantics
// without requiring an on-disk plugin. Grounded on the teacher's own
// service-identification logic (modules/nmap's OS/service detection) and
// the script names it already references in
// internal/scan/template_manager.go (banner.nse, http-title.nse,
// ssl-cert.nse).
package scripts

import "github.com/sirius-nse/engine/internal/nse"

// Entries lists the Script Index records an embedding host program should
// merge into its loaded index so the built-ins participate in category
// and "all" selection exactly like on-disk plugins.
func Entries() []nse.IndexEntry {
	return []nse.IndexEntry{
		{Category: "discovery", Filename: "banner.nse"},
		{Category: "default", Filename: "banner.nse"},
		{Category: "discovery", Filename: "http-title.nse"},
		{Category: "default", Filename: "http-title.nse"},
		{Category: "discovery", Filename: "tls-cert.nse"},
	}
}
