// Package cooksession tracks one run through a challenge recipe, from
// start through step completion to proof verification.
package cooksession

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/model"
)

// State is a cook session lifecycle state.
type State string

const (
	NotStarted State = "not_started"
	InProgress State = "in_progress"
	// Submitted means every step is done. With a pending proof attached it
	// is awaiting verification.
	Submitted State = "submitted"
	Verified  State = "verified"
	Rejected  State = "rejected"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	NotStarted: {InProgress},
	InProgress: {Submitted},
	Submitted:  {Verified, Rejected},
	Verified:   {},
	Rejected:   {},
}

var (
	ErrStepOutOfOrder = errors.New("cooksession: step completed out of order")
	ErrNoProof        = errors.New("cooksession: no proof attached")
	ErrProofAttached  = errors.New("cooksession: proof already attached")
)

// Machine tracks and enforces the cook session lifecycle.
type Machine struct {
	mu      sync.RWMutex
	current State
	session model.CookSession
	bus     *bus.Bus
}

// NewMachine creates a machine for a recipe with totalSteps steps,
// starting in NotStarted. b may be nil.
func NewMachine(id, challengeID, recipeID string, totalSteps int, b *bus.Bus) (*Machine, error) {
	if totalSteps < 1 {
		return nil, fmt.Errorf("cook session %s: recipe has no steps", id)
	}
	return &Machine{
		current: NotStarted,
		session: model.CookSession{
			ID:          id,
			ChallengeID: challengeID,
			RecipeID:    recipeID,
			TotalSteps:  totalSteps,
			StepEvents:  []model.StepEvent{},
		},
		bus: b,
	}, nil
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Session returns a copy of the session record.
func (m *Machine) Session() model.CookSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSession(m.session)
}

// PendingVerification reports whether a proof is awaiting its verdict.
func (m *Machine) PendingVerification() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current == Submitted && m.session.Proof != nil &&
		m.session.Proof.VerificationStatus == model.VerificationPending
}

// Start begins the session at now.
func (m *Machine) Start(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transition(InProgress); err != nil {
		return err
	}
	m.session.StartedAt = now
	m.session.Status = model.SessionInProgress
	return nil
}

// CompleteStep records step idx as done at now. Steps must be completed in
// order. It reports whether this was the final step, in which case the
// session moves to Submitted.
func (m *Machine) CompleteStep(idx int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != InProgress {
		return false, fmt.Errorf("complete step %d: session is %s", idx, m.current)
	}
	if idx != m.session.CurrentStep {
		return false, fmt.Errorf("%w: got %d, want %d", ErrStepOutOfOrder, idx, m.session.CurrentStep)
	}
	m.session.StepEvents = append(m.session.StepEvents, model.StepEvent{Idx: idx, CompletedAt: now})
	m.session.CurrentStep++
	if m.session.CurrentStep < m.session.TotalSteps {
		return false, nil
	}
	if err := m.transition(Submitted); err != nil {
		return false, err
	}
	at := now
	m.session.CompletedAt = &at
	m.session.Status = model.SessionSubmitted
	return true, nil
}

// AttachProof attaches a proof of cook to a submitted session. A proof
// without a status is pending.
func (m *Machine) AttachProof(p model.Proof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != Submitted {
		return fmt.Errorf("attach proof: session is %s", m.current)
	}
	if m.session.Proof != nil {
		return ErrProofAttached
	}
	if p.VerificationStatus == "" {
		p.VerificationStatus = model.VerificationPending
	}
	if !knownStatus(p.VerificationStatus) {
		return fmt.Errorf("attach proof: unknown verification status %q", p.VerificationStatus)
	}
	m.session.Proof = &p
	return m.settle(p.VerificationStatus)
}

// ResolveVerification records the verdict for the attached proof. A
// pending outcome changes nothing.
func (m *Machine) ResolveVerification(outcome model.VerificationStatus, score *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Proof == nil {
		return ErrNoProof
	}
	if outcome == model.VerificationPending {
		return nil
	}
	if m.current != Submitted {
		return fmt.Errorf("resolve verification: session is %s", m.current)
	}
	if !knownStatus(outcome) {
		return fmt.Errorf("resolve verification: unknown verification status %q", outcome)
	}
	m.session.Proof.VerificationStatus = outcome
	if score != nil {
		s := *score
		m.session.Proof.VerificationScore = &s
	}
	return m.settle(outcome)
}

// Timeout rejects a proof whose verification never arrived.
func (m *Machine) Timeout() error {
	return m.ResolveVerification(model.VerificationRejected, nil)
}

// RecordProofCoins notes the coins paid for the attached proof.
func (m *Machine) RecordProofCoins(coins int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Proof != nil {
		m.session.Proof.CoinsAwarded += coins
	}
}

func knownStatus(s model.VerificationStatus) bool {
	switch s {
	case model.VerificationPending, model.VerificationVerified, model.VerificationRejected:
		return true
	}
	return false
}

func (m *Machine) settle(status model.VerificationStatus) error {
	switch status {
	case model.VerificationVerified:
		return m.transition(Verified)
	case model.VerificationRejected:
		return m.transition(Rejected)
	case model.VerificationPending:
		return nil
	default:
		return fmt.Errorf("unknown verification status %q", status)
	}
}

// transition moves to a new state. Callers hold m.mu.
func (m *Machine) transition(to State) error {
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Publish(bus.NewEvent(bus.KindCookStatusChanged, StatusChange{
		SessionID: m.session.ID,
		From:      from,
		To:        to,
	}))
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	SessionID string
	From      State
	To        State
}

func cloneSession(s model.CookSession) model.CookSession {
	s.StepEvents = slices.Clone(s.StepEvents)
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		s.CompletedAt = &at
	}
	if s.Proof != nil {
		p := *s.Proof
		s.Proof = &p
	}
	return s
}
