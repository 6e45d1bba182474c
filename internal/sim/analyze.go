package sim

import (
	"math"

	"echochamber/internal/graph"
)

// PolarizationBreakdown shows the sub-scores of the polarization index
type PolarizationBreakdown struct {
	Segregation float64 `json:"segregation"`
	Balance     float64 `json:"balance"`
	Commitment  float64 `json:"commitment"`
}

// AnalysisReport is the full analysis of the current state
type AnalysisReport struct {
	Step                  int                   `json:"step"`
	PolarizationScore     float64               `json:"polarization_score"`
	PolarizationBreakdown PolarizationBreakdown `json:"polarization_breakdown"`
	Stats                 *StepStats            `json:"stats"`
	Topology              *graph.TopologyReport `json:"topology"`
	Bridges               *graph.BridgeReport   `json:"bridges"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
}

// DefaultAnalyzerConfig returns sensible defaults
func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 10,
		TopN:         50,
	}
}

// Analyze combines the latest tick statistics with structural reports and a
// polarization index in [0,1]:
//
//	segregation: share of visible ties joining same-opinion agents
//	balance:     how evenly the two camps are sized
//	commitment:  share of agents that are not neutral
func (s *Simulation) Analyze(config *AnalyzerConfig) *AnalysisReport {
	if config == nil {
		config = DefaultAnalyzerConfig()
	}
	stats := s.last
	topology := graph.ComputeTopology(s.graph, config.HubThreshold, config.TopN)
	bridges := graph.ComputeBridges(s.graph)

	var segregation, balance, commitment float64

	if topology.VisiblePairs > 0 {
		segregation = clamp(1.0-float64(stats.Clusters.CrossInteractions)/float64(topology.VisiblePairs), 0, 1)
	}
	camps := stats.Counts.Conservative + stats.Counts.Progressive
	if camps > 0 {
		diff := math.Abs(float64(stats.Counts.Conservative - stats.Counts.Progressive))
		balance = clamp(1.0-diff/float64(camps), 0, 1)
	}
	if total := stats.Counts.Total(); total > 0 {
		commitment = clamp(float64(camps)/float64(total), 0, 1)
	}

	score := 0.4*segregation + 0.3*balance + 0.3*commitment

	return &AnalysisReport{
		Step:              stats.Step,
		PolarizationScore: score,
		PolarizationBreakdown: PolarizationBreakdown{
			Segregation: segregation,
			Balance:     balance,
			Commitment:  commitment,
		},
		Stats:    stats,
		Topology: topology,
		Bridges:  bridges,
	}
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
