package rpcpool

import "time"

const (
	stateClosed   = "closed"
	stateDegraded = "degraded"
	stateOpen     = "open"
)

// EndpointState is the circuit breaker state of one endpoint
type EndpointState struct {
	FailureCount int
	LastAttempt  time.Time
	CircuitOpen  bool
}

// String returns "open", "degraded" (closed with failures) or "closed"
func (s EndpointState) String() string {
	switch {
	case s.CircuitOpen:
		return stateOpen
	case s.FailureCount > 0:
		return stateDegraded
	default:
		return stateClosed
	}
}

func (s *EndpointState) reset() {
	s.FailureCount = 0
	s.CircuitOpen = false
}

// recordFailure counts a failure and opens the circuit once threshold is
// reached, or at once when forceOpen is set. Reports whether it just opened.
func (s *EndpointState) recordFailure(now time.Time, threshold int, forceOpen bool) bool {
	s.FailureCount++
	s.LastAttempt = now
	if s.CircuitOpen {
		return false
	}
	if forceOpen || s.FailureCount >= threshold {
		s.CircuitOpen = true
		return true
	}
	return false
}

// readyForProbe reports whether an open circuit has waited long enough
func (s *EndpointState) readyForProbe(now time.Time, resetAfter time.Duration) bool {
	return s.CircuitOpen && now.Sub(s.LastAttempt) >= resetAfter
}
