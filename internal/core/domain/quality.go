package domain

const (
	ExcellentLatencyMs = 100
	PoorLatencyMs      = 300
	PoorReconnectCount = 3
)

// ClassifyQuality is the single connection-quality rule used by both the
// transport stats and the dashboard health summary.
func ClassifyQuality(avgLatencyMs float64, reconnectCount int, connected bool) ConnectionQuality {
	switch {
	case !connected:
		return QualityPoor
	case reconnectCount > PoorReconnectCount || avgLatencyMs >= PoorLatencyMs:
		return QualityPoor
	case avgLatencyMs < ExcellentLatencyMs:
		return QualityExcellent
	default:
		return QualityGood
	}
}
