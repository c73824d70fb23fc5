package watch

// healthStatus summarises consecutive failures of a link (push connect or
// pull fetch).
type healthStatus int

const (
	statusHealthy healthStatus = iota
	statusDegraded
	statusFailed
)

func (s healthStatus) String() string {
	switch s {
	case statusDegraded:
		return "degraded"
	case statusFailed:
		return "failed"
	default:
		return "healthy"
	}
}

// linkHealth tracks consecutive failures and detects status transitions so
// callers can report once per transition instead of once per failure. Owned
// by the driver goroutine; not safe for concurrent use.
type linkHealth struct {
	name       string
	threshold  int
	failures   int
	lastErr    string
	lastStatus healthStatus
}

func newLinkHealth(name string, threshold int) *linkHealth {
	if threshold <= 0 {
		threshold = 3
	}
	return &linkHealth{name: name, threshold: threshold}
}

func (h *linkHealth) recordSuccess() {
	h.failures = 0
	h.lastErr = ""
}

func (h *linkHealth) recordFailure(err error) {
	h.failures++
	h.lastErr = err.Error()
}

// statusChanged returns the current status and whether it differs from the
// last status this method reported.
func (h *linkHealth) statusChanged() (healthStatus, bool) {
	status := statusHealthy
	switch {
	case h.failures >= h.threshold:
		status = statusFailed
	case h.failures > 0:
		status = statusDegraded
	}
	if status == h.lastStatus {
		return status, false
	}
	h.lastStatus = status
	return status, true
}

func (h *linkHealth) lastError() string {
	return h.lastErr
}
