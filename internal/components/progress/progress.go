// Package progress evaluates onboarding and facility workflows: an ordered
// list of stages, each answered by an independent remote check. The current
// stage is the first one after the longest run of completed stages.
package progress

import (
	"context"
	"time"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
)

// Subject is what a workflow is evaluated for.
type Subject struct {
	Auth       portalapi.Auth
	FacilityID string
}

// key identifies the subject in cache keys.
func (s Subject) key() string {
	if s.FacilityID != "" {
		return s.Auth.UserID + ":" + s.FacilityID
	}
	return s.Auth.UserID
}

// Predicate answers whether a stage is complete for a subject.
type Predicate func(ctx context.Context, subj Subject) (bool, error)

// Stage is one step of a workflow. IDs are 1-based positions.
type Stage struct {
	ID    int
	Key   string
	Name  string
	Check Predicate
}

// Workflow is an ordered list of stages.
type Workflow struct {
	Name   string
	Stages []Stage
}

// StageStatus is the outcome of one stage check.
type StageStatus string

const (
	StatusComplete   StageStatus = "complete"
	StatusIncomplete StageStatus = "incomplete"
	// StatusUnknown marks a check that failed. It counts as incomplete.
	StatusUnknown StageStatus = "unknown"
)

// StageResult is the reported outcome of one stage.
type StageResult struct {
	ID     int         `json:"id"`
	Key    string      `json:"key"`
	Name   string      `json:"name"`
	Status StageStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// Progress is an evaluated workflow.
type Progress struct {
	Workflow        string        `json:"workflow"`
	CurrentStage    int           `json:"current_stage"`
	CompletedStages []int         `json:"completed_stages"`
	TotalStages     int           `json:"total_stages"`
	Stages          []StageResult `json:"stages"`
	EvaluatedAt     time.Time     `json:"evaluated_at"`
}

// Compute returns the current stage and the completed stage IDs for ordered
// stage outcomes. Only the longest prefix of true outcomes counts; a true
// outcome after a false one never advances progress. The current stage is
// capped at the number of stages.
func Compute(done []bool) (current int, completed []int) {
	k := 0
	for k < len(done) && done[k] {
		k++
	}
	completed = make([]int, k)
	for i := range completed {
		completed[i] = i + 1
	}
	current = k + 1
	if current > len(done) {
		current = len(done)
	}
	return current, completed
}
