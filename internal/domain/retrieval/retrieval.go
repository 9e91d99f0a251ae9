package retrieval

import "fmt"

// MaxTargets is how many distinct target entities a lookup yields.
const MaxTargets = 3

// Hit is one ranked passage returned by the retrieval service.
type Hit struct {
	Score    float64 `json:"score"`
	EntityID string  `json:"interviewee_id"`
	Category string  `json:"product_name"`
	Snippet  string  `json:"text_snippet"`
	Source   string  `json:"interview_id"`
	Locator  string  `json:"turns"`
}

// Result carries the deduplicated target entities plus the raw hits for
// diagnostics. An empty Targets list is a valid answer.
type Result struct {
	Targets []string `json:"targets"`
	Hits    []Hit    `json:"hits,omitempty"`
}

// TargetsFrom keeps the first limit distinct non-empty entity ids in hit order.
func TargetsFrom(hits []Hit, limit int) []string {
	seen := make(map[string]struct{}, limit)
	targets := make([]string, 0, limit)
	for _, h := range hits {
		if h.EntityID == "" {
			continue
		}
		if _, ok := seen[h.EntityID]; ok {
			continue
		}
		seen[h.EntityID] = struct{}{}
		targets = append(targets, h.EntityID)
		if len(targets) >= limit {
			break
		}
	}
	return targets
}

// Snippet truncates text to n characters and marks the cut.
func Snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

// Chunk is one indexed slice of an interview transcript.
type Chunk struct {
	Source    string `json:"interview_id" yaml:"interview_id"`
	EntityID  string `json:"interviewee_id" yaml:"interviewee_id"`
	Category  string `json:"product_name" yaml:"product_name"`
	Text      string `json:"text" yaml:"text"`
	StartTurn int    `json:"start_turn" yaml:"start_turn"`
	EndTurn   int    `json:"end_turn" yaml:"end_turn"`
}

// SnippetLength is how much of a chunk a Hit carries.
const SnippetLength = 200

// Hit converts a scored chunk into a ranked hit.
func (c Chunk) Hit(score float64) Hit {
	return Hit{
		Score:    score,
		EntityID: c.EntityID,
		Category: c.Category,
		Snippet:  Snippet(c.Text, SnippetLength),
		Source:   c.Source,
		Locator:  fmt.Sprintf("%d-%d", c.StartTurn, c.EndTurn),
	}
}
