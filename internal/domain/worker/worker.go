package worker

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
	StatusOnBreak   Status = "on_break"
)

// Metrics are the performance figures the scoring engine reads.
type Metrics struct {
	AvgDuration    float64 `json:"avg_interview_duration" yaml:"avg_duration"`
	Satisfaction   float64 `json:"customer_satisfaction" yaml:"satisfaction"`
	CompletionRate float64 `json:"completion_rate" yaml:"completion_rate"`
}

// Window is a daily availability range expressed as minutes since midnight,
// inclusive on both ends.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// AllDay covers 00:00 through 23:59.
var AllDay = Window{Start: 0, End: 23*60 + 59}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	var sh, sm, eh, em int
	if _, err := fmt.Sscanf(s, "%d:%d-%d:%d", &sh, &sm, &eh, &em); err != nil {
		return Window{}, fmt.Errorf("parse window %q: %w", s, err)
	}
	w := Window{Start: sh*60 + sm, End: eh*60 + em}
	if sh < 0 || sh > 23 || eh < 0 || eh > 23 || sm < 0 || sm > 59 || em < 0 || em > 59 || w.End < w.Start {
		return Window{}, fmt.Errorf("parse window %q: out of range", s)
	}
	return w, nil
}

func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.Start && m <= w.End
}

// Schedule maps a weekday to its availability windows. A nil Schedule means
// always available.
type Schedule map[time.Weekday][]Window

func (s Schedule) Covers(t time.Time) bool {
	if s == nil {
		return true
	}
	for _, w := range s[t.Weekday()] {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

type Worker struct {
	ID           string    `json:"interviewer_id"`
	Name         string    `json:"name"`
	Specialties  []string  `json:"specialties"`
	Status       Status    `json:"status"`
	CurrentLoad  int       `json:"current_load"`
	MaxCapacity  int       `json:"max_capacity"`
	HourlyRate   float64   `json:"hourly_rate"`
	Metrics      Metrics   `json:"performance_metrics"`
	Schedule     Schedule  `json:"-"`
	LastActivity time.Time `json:"last_activity"`
}

func New(id, name string, specialties []string, hourlyRate float64, maxCapacity int, metrics Metrics, now time.Time) Worker {
	return Worker{
		ID:           id,
		Name:         name,
		Specialties:  specialties,
		Status:       StatusAvailable,
		MaxCapacity:  maxCapacity,
		HourlyRate:   hourlyRate,
		Metrics:      metrics,
		LastActivity: now,
	}
}

func (w *Worker) HasCapacity() bool {
	return w.CurrentLoad < w.MaxCapacity
}

// Eligible reports whether the worker can take a new assignment at t.
func (w *Worker) Eligible(t time.Time) bool {
	return w.Status == StatusAvailable && w.HasCapacity() && w.Schedule.Covers(t)
}

// DeriveStatus recomputes the load-derived status. ON_BREAK and OFFLINE are
// owned by the monitor and are left untouched.
func (w *Worker) DeriveStatus() {
	if w.Status == StatusOnBreak || w.Status == StatusOffline {
		return
	}
	if w.CurrentLoad >= w.MaxCapacity {
		w.Status = StatusBusy
		return
	}
	w.Status = StatusAvailable
}

func (w *Worker) HasSpecialty(tag string) bool {
	for _, s := range w.Specialties {
		if s == tag {
			return true
		}
	}
	return false
}

// Copy returns a value that shares no slices or maps with w.
func (w Worker) Copy() Worker {
	out := w
	out.Specialties = append([]string(nil), w.Specialties...)
	if w.Schedule != nil {
		out.Schedule = make(Schedule, len(w.Schedule))
		for day, windows := range w.Schedule {
			out.Schedule[day] = append([]Window(nil), windows...)
		}
	}
	return out
}
