package risk

// ResponseLevel is the escalation applied after a successful verification.
type ResponseLevel string

const (
	Quarantine         ResponseLevel = "QUARANTINE"
	ReauthRequired     ResponseLevel = "REAUTH_REQUIRED"
	ScrutinyIncreased  ResponseLevel = "SCRUTINY_INCREASED"
	MonitoringElevated ResponseLevel = "MONITORING_ELEVATED"
	Normal             ResponseLevel = "NORMAL"
)

// AdaptiveResponse maps score onto the escalation ladder.
func AdaptiveResponse(score float64) ResponseLevel {
	switch {
	case score > 0.9:
		return Quarantine
	case score > 0.7:
		return ReauthRequired
	case score > 0.5:
		return ScrutinyIncreased
	case score > 0.3:
		return MonitoringElevated
	default:
		return Normal
	}
}

// Summary buckets identities by their most recent score.
type Summary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

func (s *Summary) add(score float64) {
	switch {
	case score > 0.7:
		s.High++
	case score > 0.3:
		s.Medium++
	default:
		s.Low++
	}
}
