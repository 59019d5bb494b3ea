// Package wizard runs the onboarding wizards as explicit state machines.
// Each role has a Definition: a transition table from (state, event) to the
// next state, with an optional guard checked before any remote call and an
// optional action that performs the remote call.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/gloriousnetworker/dcarbon-portal/internal/components/portalapi"
	"github.com/gloriousnetworker/dcarbon-portal/internal/components/session"
)

// Kind names a wizard.
type Kind string

const (
	KindOperator        Kind = "operator"
	KindCommercialOwner Kind = "commercial_owner"
	KindCommercialBoth  Kind = "commercial_both"
	KindPartner         Kind = "partner"
	KindResidential     Kind = "residential"
)

// State is a wizard step.
type State string

const (
	StateWelcome              State = "welcome"
	StateEntityForm           State = "entity_form"
	StateReferralCode         State = "referral_code"
	StateTermsAgreement       State = "terms_agreement"
	StateSignature            State = "signature"
	StateUtilityAuthorization State = "utility_authorization"
	StateFacilityCreation     State = "facility_creation"
	StateSuccess              State = "success"
)

// Event drives a transition.
type Event string

const (
	EventContinue            Event = "continue"
	EventSubmit              Event = "submit"
	EventSkip                Event = "skip"
	EventAccept              Event = "accept"
	EventSign                Event = "sign"
	EventBack                Event = "back"
	EventOpenUtilityAuth     Event = "open_utility_auth"
	EventUtilityAuthComplete Event = "utility-auth-complete"
)

// Run carries one transition attempt through its guard and action.
// Actions write to Data; it is committed only when the action succeeds.
type Run struct {
	Session *session.Session
	Payload json.RawMessage
	Data    Data

	// Input is set by the guard to the decoded payload.
	Input any
}

// Auth returns the remote credentials of the run's session.
func (r *Run) Auth() portalapi.Auth { return r.Session.Auth() }

// Transition is one row of a transition table.
type Transition struct {
	To     State
	Guard  func(r *Run) error
	Action func(ctx context.Context, r *Run) error
}

// Definition is the transition table of one wizard kind.
type Definition struct {
	Kind        Kind
	Initial     State
	Terminal    []State
	Transitions map[State]map[Event]Transition
}

// IsTerminal reports whether s ends the wizard.
func (d *Definition) IsTerminal(s State) bool {
	return slices.Contains(d.Terminal, s)
}

// Events returns the events allowed in s, sorted.
func (d *Definition) Events(s State) []Event {
	out := make([]Event, 0, len(d.Transitions[s]))
	for ev := range d.Transitions[s] {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks the table: every state is reachable from Initial, every
// non-terminal state has an exit and terminal states have none.
func (d *Definition) Validate() error {
	var problems []string
	if d.Initial == "" {
		problems = append(problems, "no initial state")
	}
	if len(d.Terminal) == 0 {
		problems = append(problems, "no terminal state")
	}

	states := map[State]bool{d.Initial: true}
	for from, row := range d.Transitions {
		states[from] = true
		for _, tr := range row {
			if tr.To == "" {
				problems = append(problems, fmt.Sprintf("transition from %s has no target", from))
				continue
			}
			states[tr.To] = true
		}
	}
	for _, t := range d.Terminal {
		states[t] = true
	}

	reached := map[State]bool{d.Initial: true}
	queue := []State{d.Initial}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, tr := range d.Transitions[s] {
			if !reached[tr.To] {
				reached[tr.To] = true
				queue = append(queue, tr.To)
			}
		}
	}

	for s := range states {
		switch {
		case !reached[s]:
			problems = append(problems, fmt.Sprintf("state %s is unreachable", s))
		case d.IsTerminal(s) && len(d.Transitions[s]) > 0:
			problems = append(problems, fmt.Sprintf("terminal state %s has transitions", s))
		case !d.IsTerminal(s) && len(d.Transitions[s]) == 0:
			problems = append(problems, fmt.Sprintf("state %s has no exit", s))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.New(string(d.Kind) + ": " + strings.Join(problems, "; "))
}
