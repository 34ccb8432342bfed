package bench

import (
	"github.com/c360studio/crucible/verdict"
)

// Classes is the confusion matrix order: rows are gold, columns predicted.
var Classes = []verdict.Decision{verdict.Deny, verdict.Caution, verdict.Go}

// Scored pairs a predicted verdict with its gold labels.
type Scored struct {
	ID           string
	Predicted    verdict.Verdict
	GoldDecision verdict.Decision
	GoldRedlines []string
}

// ClassMetrics are precision, recall and F1 for one decision class.
// Undefined ratios are reported as 0.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Summary is the result of scoring a dataset.
type Summary struct {
	Total     int                               `json:"total"`
	Correct   int                               `json:"correct"`
	Accuracy  float64                           `json:"accuracy"`
	Confusion [3][3]int                         `json:"confusion"`
	PerClass  map[verdict.Decision]ClassMetrics `json:"per_class"`

	// MacroJaccard averages redline Jaccard over JaccardItems. Items where both
	// gold and predicted sets are empty are excluded, not counted as 1.
	MacroJaccard float64 `json:"macro_jaccard"`
	JaccardItems int     `json:"jaccard_items"`
}

func classIndex(d verdict.Decision) int {
	for i, c := range Classes {
		if c == d {
			return i
		}
	}
	return -1
}

// Score computes accuracy, the confusion matrix, per-class metrics and
// macro-average redline Jaccard.
func Score(items []Scored) Summary {
	s := Summary{
		Total:    len(items),
		PerClass: make(map[verdict.Decision]ClassMetrics, len(Classes)),
	}

	var jaccardSum float64
	for _, it := range items {
		gold, pred := classIndex(it.GoldDecision), classIndex(it.Predicted.Decision)
		if gold >= 0 && pred >= 0 {
			s.Confusion[gold][pred]++
		}
		if it.GoldDecision == it.Predicted.Decision {
			s.Correct++
		}
		if j, ok := Jaccard(it.Predicted.Redlines, it.GoldRedlines); ok {
			jaccardSum += j
			s.JaccardItems++
		}
	}

	if s.Total > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Total)
	}
	if s.JaccardItems > 0 {
		s.MacroJaccard = jaccardSum / float64(s.JaccardItems)
	}

	for k, c := range Classes {
		tp := s.Confusion[k][k]
		var predicted, actual int
		for i := range Classes {
			predicted += s.Confusion[i][k]
			actual += s.Confusion[k][i]
		}
		m := ClassMetrics{Support: actual}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			m.Recall = float64(tp) / float64(actual)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		s.PerClass[c] = m
	}
	return s
}

// Jaccard returns |a∩b| / |a∪b| over the distinct ids of a and b. ok is false
// when both sets are empty.
func Jaccard(a, b []string) (j float64, ok bool) {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0, false
	}

	inter := 0
	for id := range setA {
		if setB[id] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union), true
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
