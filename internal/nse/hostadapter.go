package nse

// hostKey identifies a host for the live-task bookkeeping the Scheduler
// needs (§4.6 "Host Adapter"). Hosts are compared by IP, mirroring the
// "weak identity" ownership note in §3 (the canonical host object is
// referenced by identity for timeout bookkeeping only).
type hostKey string

func keyOf(h Host) hostKey {
	return hostKey(h.IP)
}

// hostAdapter tracks which tasks are still alive per host and drives the
// HostAPI's timeout clock accordingly (§4.6). It is a thin layer over
// HostAPI, not a replacement for it: every timeout/output call is
// forwarded verbatim.
type hostAdapter struct {
	api  HostAPI
	live map[hostKey]map[int64]bool
}

func newHostAdapter(api HostAPI) *hostAdapter {
	return &hostAdapter{api: api, live: make(map[hostKey]map[int64]bool)}
}

// track registers taskID against host, starting the host's timeout clock
// if this is its first live task.
func (a *hostAdapter) track(host Host, taskID int64) {
	k := keyOf(host)
	set, ok := a.live[k]
	if !ok {
		set = make(map[int64]bool)
		a.live[k] = set
		a.api.StartTimeoutClock(host)
	}
	set[taskID] = true
}

// untrack removes taskID from host's live set on normal completion or
// script error, stopping the timeout clock once the set empties.
//
// Per §9 "Open questions", a timed-out task is deliberately NOT untracked
// here: the source drops it from `waiting` without scrubbing `hosts[host]`,
// so the clock can keep running and the set can retain a dead identity.
// That behavior is replicated by default rather than fixed.
func (a *hostAdapter) untrack(host Host, taskID int64) {
	k := keyOf(host)
	set, ok := a.live[k]
	if !ok {
		return
	}
	delete(set, taskID)
	if len(set) == 0 {
		delete(a.live, k)
		a.api.StopTimeoutClock(host)
	}
}

func (a *hostAdapter) timedOut(host Host) bool {
	return a.api.TimedOut(host)
}
