package scripts

import "github.com/sirius-nse/engine/internal/nse"

func init() {
	nse.RegisterBuiltin("banner.nse", newBannerScript)
}

// newBannerScript grabs whatever bytes a host's first open port offers up
// front, without sending anything first. Matches the teacher's
// template_manager.go "banner.nse" listing.
func newBannerScript() *nse.ScriptDef {
	return &nse.ScriptDef{
		Description: "Grabs the service banner from a host's first open port",
		Author:      "sirius-nse",
		License:     "Same as the engine itself",
		Categories:  []string{"discovery", "default"},
		Runlevel:    1,
		HostRule: func(host nse.Host) bool {
			return len(host.Ports) > 0
		},
		Action: func(env *nse.Env, host nse.Host, _ nse.Port) (string, error) {
			var target nse.Port
			found := false
			for _, p := range host.Ports {
				if p.State == "open" {
					target = p
					found = true
					break
				}
			}
			if !found {
				return "", nil
			}

			data, err := env.WaitRead(host, target, nil, 3000)
			if err != nil {
				return "", nil
			}
			return string(data), nil
		},
	}
}
