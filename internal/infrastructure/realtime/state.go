package realtime

import "fleetpulse/internal/core/domain"

// transitions lists the phases reachable from each phase. Disconnect may
// always return to idle.
var transitions = map[domain.ConnectionPhase][]domain.ConnectionPhase{
	domain.PhaseIdle:         {domain.PhaseConnecting, domain.PhaseFailed, domain.PhaseIdle},
	domain.PhaseConnecting:   {domain.PhaseConnected, domain.PhaseReconnecting, domain.PhaseFailed, domain.PhaseIdle, domain.PhaseConnecting},
	domain.PhaseConnected:    {domain.PhaseReconnecting, domain.PhaseFailed, domain.PhaseIdle},
	domain.PhaseReconnecting: {domain.PhaseConnecting, domain.PhaseFailed, domain.PhaseIdle, domain.PhaseReconnecting},
	domain.PhaseFailed:       {domain.PhaseConnecting, domain.PhaseIdle, domain.PhaseFailed},
}

func canTransition(from, to domain.ConnectionPhase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// setPhase moves the state machine and keeps the coarse Connected/Connecting
// flags of ConnectionState in sync. Caller holds m.mu.
func (m *Manager) setPhase(to domain.ConnectionPhase) bool {
	from := m.phase
	if !canTransition(from, to) {
		m.logger.Warnw("rejected connection phase transition", "from", from.String(), "to", to.String())
		return false
	}
	m.phase = to
	m.state.Connected = to == domain.PhaseConnected
	m.state.Connecting = to == domain.PhaseConnecting
	m.metrics.Phase(to)
	if from != to {
		m.logger.Debugw("connection phase changed", "from", from.String(), "to", to.String())
	}
	return true
}
