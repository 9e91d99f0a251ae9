package worker

import "time"

// Seed is the static part of a bootstrap worker. Metrics are optional; a zero
// value means "draw at startup".
type Seed struct {
	ID          string
	Name        string
	Specialties []string
	HourlyRate  float64
	MaxCapacity int
	Metrics     *Metrics
	Schedule    Schedule
}

// DefaultSeeds is the fixed population the router starts with when no config
// file lists workers.
var DefaultSeeds = []Seed{
	{
		ID:          "AI_TECH_001",
		Name:        "TechBot Alpha",
		Specialties: []string{"technology", "gaming", "electronics", "headphones", "smart devices"},
		HourlyRate:  45,
		MaxCapacity: 8,
	},
	{
		ID:          "AI_HEALTH_001",
		Name:        "HealthBot Beta",
		Specialties: []string{"healthcare", "fitness", "wellness", "toothbrush", "medical"},
		HourlyRate:  50,
		MaxCapacity: 6,
	},
	{
		ID:          "AI_HOME_001",
		Name:        "HomeBot Gamma",
		Specialties: []string{"home", "kitchen", "appliances", "airfryer", "cooker"},
		HourlyRate:  40,
		MaxCapacity: 10,
	},
	{
		ID:          "AI_BIZ_001",
		Name:        "BizBot Delta",
		Specialties: []string{"business", "productivity", "office", "scanner", "projector"},
		HourlyRate:  55,
		MaxCapacity: 5,
	},
	{
		ID:          "AI_LIFESTYLE_001",
		Name:        "LifestyleBot Epsilon",
		Specialties: []string{"retail", "fashion", "lifestyle", "watches", "accessories"},
		HourlyRate:  35,
		MaxCapacity: 8,
	},
	{
		ID:          "AI_GENERAL_001",
		Name:        "GeneralBot Zeta",
		Specialties: []string{"general", "consumer", "products", "battery", "reviews"},
		HourlyRate:  30,
		MaxCapacity: 12,
	},
}

// Uniform draws from [lo, hi).
type Uniform func(lo, hi float64) float64

// FromSeed builds a worker, drawing any missing metrics from the ranges the
// simulated population uses.
func FromSeed(s Seed, draw Uniform, now time.Time) Worker {
	var m Metrics
	if s.Metrics != nil {
		m = *s.Metrics
	} else {
		m = Metrics{
			AvgDuration:    draw(30, 50),
			Satisfaction:   draw(4.0, 4.9),
			CompletionRate: draw(0.95, 0.99),
		}
	}
	w := New(s.ID, s.Name, append([]string(nil), s.Specialties...), s.HourlyRate, s.MaxCapacity, m, now)
	w.Schedule = s.Schedule
	return w
}
