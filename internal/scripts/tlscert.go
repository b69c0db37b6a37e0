package scripts

import (
	"strings"

	"github.com/sirius-nse/engine/internal/nse"
)

var tlsPorts = map[int]bool{443: true, 8443: true}

func init() {
	nse.RegisterBuiltin("tls-cert.nse", newTLSCertScript)
}

// newTLSCertScript performs a TLS handshake and reports the leaf
// certificate's subject, matching the teacher's "ssl-cert.nse" listing.
func newTLSCertScript() *nse.ScriptDef {
	return &nse.ScriptDef{
		Description: "Reports the subject of the TLS certificate served on a port",
		Author:      "sirius-nse",
		License:     "Same as the engine itself",
		Categories:  []string{"discovery"},
		Runlevel:    2,
		PortRule: func(host nse.Host, port nse.Port) bool {
			if port.Protocol != "tcp" || port.State != "open" {
				return false
			}
			if tlsPorts[port.ID] {
				return true
			}
			for _, svc := range host.Services {
				if svc.Port == port.ID && strings.Contains(strings.ToLower(svc.Product), "ssl") {
					return true
				}
			}
			return false
		},
		Action: func(env *nse.Env, host nse.Host, port nse.Port) (string, error) {
			subject, err := env.WaitTLSCert(host, port, 4000)
			if err != nil {
				return "", nil
			}
			return subject, nil
		},
	}
}
