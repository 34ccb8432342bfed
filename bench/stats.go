package bench

import (
	"math"
	"sort"

	"github.com/c360studio/crucible/verdict"
)

// RedlineRate is a redline id with the share of verdicts that cite it.
type RedlineRate struct {
	ID   string  `json:"id"`
	Rate float64 `json:"rate"`
}

// BatchStats summarizes the verdicts of one batch run.
type BatchStats struct {
	Total          int                          `json:"total"`
	DecisionCounts map[verdict.Decision]int     `json:"decision_counts"`
	DecisionPct    map[verdict.Decision]float64 `json:"decision_pct"`
	RedlineCounts  map[string]int               `json:"redline_counts"`
	RedlineHitRate map[string]float64           `json:"redline_hit_rate"`
	Top1           []RedlineRate                `json:"top1"`
	Top3           []RedlineRate                `json:"top3"`
}

// Stats counts decisions and redline hits across verdicts. Rates are rounded
// to four decimals; top lists order by rate, then id.
func Stats(verdicts []verdict.Verdict) BatchStats {
	s := BatchStats{
		Total:          len(verdicts),
		DecisionCounts: make(map[verdict.Decision]int),
		DecisionPct:    make(map[verdict.Decision]float64),
		RedlineCounts:  make(map[string]int),
		RedlineHitRate: make(map[string]float64),
	}

	for _, v := range verdicts {
		s.DecisionCounts[v.Decision]++
		for _, id := range v.Redlines {
			s.RedlineCounts[id]++
		}
	}

	for d, n := range s.DecisionCounts {
		s.DecisionPct[d] = rate(n, s.Total)
	}

	ranked := make([]RedlineRate, 0, len(s.RedlineCounts))
	for id, n := range s.RedlineCounts {
		r := rate(n, s.Total)
		s.RedlineHitRate[id] = r
		ranked = append(ranked, RedlineRate{ID: id, Rate: r})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rate != ranked[j].Rate {
			return ranked[i].Rate > ranked[j].Rate
		}
		return ranked[i].ID < ranked[j].ID
	})

	s.Top1 = ranked[:min(1, len(ranked))]
	s.Top3 = ranked[:min(3, len(ranked))]
	return s
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1e4) / 1e4
}
