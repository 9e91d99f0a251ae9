// Package matcher scores workers against a query. Everything here is pure:
// the caller supplies a registry snapshot and gets back a decision.
package matcher

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	domainquery "github.com/alanyang/interview-router/internal/domain/query"
	domainworker "github.com/alanyang/interview-router/internal/domain/worker"
)

var ErrNoEligibleWorker = errors.New("no eligible worker")

const (
	specialtyPoints   = 10.0
	headroomWeight    = 5.0
	completionWeight  = 3.0
	urgencyBonus      = 5.0
	urgencyMinSatisf  = 4.5
	costWeight        = 2.0
	costBaseline      = 100.0
	priorityLevelStep = 10.0
	waitPerMinute     = 0.1
	waitCap           = 5.0
	satisfactionScale = 2.0
)

// Breakdown is the per-term contribution to a match score.
type Breakdown struct {
	Specialty float64 `json:"specialty"`
	Headroom  float64 `json:"headroom"`
	Quality   float64 `json:"quality"`
	Urgency   float64 `json:"urgency"`
	Cost      float64 `json:"cost"`
}

func (b Breakdown) Total() float64 {
	return b.Specialty + b.Headroom + b.Quality + b.Urgency + b.Cost
}

type Candidate struct {
	Worker    domainworker.Worker
	Score     float64
	Breakdown Breakdown
}

// Score computes the match breakdown for one query/worker pair.
func Score(q domainquery.Query, w domainworker.Worker) Breakdown {
	var b Breakdown

	text := strings.ToLower(q.Text)
	for _, spec := range w.Specialties {
		for _, word := range strings.Fields(strings.ToLower(spec)) {
			if strings.Contains(text, word) {
				b.Specialty += specialtyPoints
				break
			}
		}
	}

	if w.MaxCapacity > 0 {
		b.Headroom = float64(w.MaxCapacity-w.CurrentLoad) / float64(w.MaxCapacity) * headroomWeight
	}

	b.Quality = w.Metrics.Satisfaction + w.Metrics.CompletionRate*completionWeight

	if q.Priority >= domainquery.PriorityHigh && w.Metrics.Satisfaction > urgencyMinSatisf {
		b.Urgency = urgencyBonus
	}

	// Rates above the baseline go negative on purpose.
	b.Cost = (costBaseline - w.HourlyRate) / costBaseline * costWeight

	return b
}

// SelectBest returns the highest scoring worker. Ties keep the earlier worker
// in the slice.
func SelectBest(q domainquery.Query, workers []domainworker.Worker) (Candidate, error) {
	var (
		best  Candidate
		found bool
	)
	for _, w := range workers {
		b := Score(q, w)
		total := b.Total()
		if !found || total > best.Score {
			best = Candidate{Worker: w, Score: total, Breakdown: b}
			found = true
		}
	}
	if !found {
		return Candidate{}, ErrNoEligibleWorker
	}
	return best, nil
}

// Rank scores every worker, best first. Equal scores keep input order.
func Rank(q domainquery.Query, workers []domainworker.Worker) []Candidate {
	out := make([]Candidate, 0, len(workers))
	for _, w := range workers {
		b := Score(q, w)
		out = append(out, Candidate{Worker: w, Score: b.Total(), Breakdown: b})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// PriorityScore is the urgency figure attached to an assignment.
func PriorityScore(q domainquery.Query, w domainworker.Worker, now time.Time) float64 {
	wait := math.Max(q.WaitMinutes(now), 0) * waitPerMinute
	return float64(q.Priority)*priorityLevelStep + math.Min(wait, waitCap) + w.Metrics.Satisfaction*satisfactionScale
}
