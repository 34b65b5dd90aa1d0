package worker

import "sync"

// counters holds the success/failure heartbeat tally for one node.
type counters struct {
	mu               sync.Mutex
	success, failure int64
}

func (c *counters) add(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.success++
	} else {
		c.failure++
	}
}

func (c *counters) snapshot(reset bool) (success, failure int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	success, failure = c.success, c.failure
	if reset {
		c.success, c.failure = 0, 0
	}
	return success, failure
}

// apNode is an Access Point hosted by this worker.
type apNode struct {
	AUID             string
	HubAUID          string
	HeartbeatSeconds int
	AzimuthDeg       int
	Secret           string
	Lat, Lon         float64

	own         counters
	descendants counters
}

func (a *apNode) auid() string            { return a.AUID }
func (a *apNode) heartbeatSeconds() int   { return a.HeartbeatSeconds }
func (a *apNode) recordHeartbeat(ok bool) { a.own.add(ok) }

// statsSnapshot folds the AP's own heartbeat counters together with
// those rolled up from its RT descendants, per spec.md's "my counters +
// descendants' counters" rule.
func (a *apNode) statsSnapshot(reset bool) (success, failure int64) {
	os, of := a.own.snapshot(reset)
	ds, df := a.descendants.snapshot(reset)
	return os + ds, of + df
}

// rtNode is a Remote Terminal hosted by this worker.
type rtNode struct {
	AUID             string
	APAUID           string
	HeartbeatSeconds int
	Lat, Lon         float64

	own counters
}

func (r *rtNode) auid() string            { return r.AUID }
func (r *rtNode) heartbeatSeconds() int   { return r.HeartbeatSeconds }
func (r *rtNode) recordHeartbeat(ok bool) { r.own.add(ok) }

func (r *rtNode) statsSnapshot(reset bool) (success, failure int64) {
	return r.own.snapshot(reset)
}
