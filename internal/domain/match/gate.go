package match

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// State of a line item's resolution.
type State string

const (
	StateUnresolved    State = "unresolved"
	StateAutoMatched   State = "auto_matched"
	StatePendingReview State = "pending_review"
	StateNewProduct    State = "new_product"
	StateConfirmed     State = "confirmed"
)

// ErrUnresolved is returned when a confirmation arrives before the gate has
// decided the item.
var ErrUnresolved = errors.New("match: item not yet resolved")

// OverrideEvent records a user choosing something other than the automatic
// decision, or changing an already-confirmed item. Kept for audit.
type OverrideEvent struct {
	ProductID  uuid.UUID
	PriorState State
	At         time.Time
}

// Resolution is the gate's decision for one line item and its subsequent
// confirmation lifecycle: Unresolved → {AutoMatched | PendingReview |
// NewProduct} → Confirmed. Confirmed is terminal; later changes are new
// override events, never a reopened state.
type Resolution struct {
	State       State
	Best        *Candidate
	Candidates  []Candidate
	AutoMatched bool
	ConfirmedID *uuid.UUID
	Overrides   []OverrideEvent

	// Unavailable marks items routed to review because the catalog store
	// could not be queried, as opposed to a genuinely empty candidate set.
	Unavailable bool
}

// Gate turns a ranked candidate list into a resolution.
type Gate struct {
	threshold     int
	minCandidates int
	maxCandidates int
}

// NewGate creates a confidence gate. threshold is the auto-accept score;
// min/max bound how many candidates a manual review surfaces.
func NewGate(threshold, minCandidates, maxCandidates int) *Gate {
	if minCandidates < 1 {
		minCandidates = 1
	}
	if maxCandidates < minCandidates {
		maxCandidates = minCandidates
	}
	return &Gate{threshold: threshold, minCandidates: minCandidates, maxCandidates: maxCandidates}
}

// Decide gates a ranked candidate list. An empty list routes to NewProduct;
// a top score at or above the threshold auto-matches; anything else goes to
// manual review with between min and max candidates shown.
func (g *Gate) Decide(candidates []Candidate) *Resolution {
	if len(candidates) == 0 {
		return &Resolution{State: StateNewProduct}
	}

	best := candidates[0]
	if best.Confidence >= g.threshold {
		// An auto-match still carries minCandidates runners-up so a later
		// manual override has alternatives to show.
		shown := candidates
		if len(shown) > g.minCandidates {
			shown = shown[:g.minCandidates]
		}
		return &Resolution{
			State:       StateAutoMatched,
			Best:        &best,
			Candidates:  shown,
			AutoMatched: true,
		}
	}

	shown := candidates
	if len(shown) > g.maxCandidates {
		shown = shown[:g.maxCandidates]
	}
	return &Resolution{
		State:      StatePendingReview,
		Best:       &best,
		Candidates: shown,
	}
}

// Unavailable builds the resolution for a line item whose matching could
// not run (store failure, timeout). Routed to manual review with zero
// candidates; sibling items are unaffected.
func (g *Gate) Unavailable() *Resolution {
	return &Resolution{State: StatePendingReview, Unavailable: true}
}

// Confirm records the user's (or the auto-accept path's) final selection.
// Any product is accepted regardless of what the gate surfaced; selecting
// anything other than an auto-matched best, or changing an already-confirmed
// item, is recorded as an override event.
func (r *Resolution) Confirm(productID uuid.UUID) (*OverrideEvent, error) {
	if r.State == StateConfirmed {
		// Terminal: a later change is a fresh override, not a reopen.
		ev := OverrideEvent{ProductID: productID, PriorState: StateConfirmed, At: time.Now()}
		r.Overrides = append(r.Overrides, ev)
		r.ConfirmedID = &productID
		return &ev, nil
	}
	if r.State == StateUnresolved {
		return nil, ErrUnresolved
	}

	var ev *OverrideEvent
	if r.AutoMatched && r.Best != nil && r.Best.Product.ID != productID {
		e := OverrideEvent{ProductID: productID, PriorState: r.State, At: time.Now()}
		r.Overrides = append(r.Overrides, e)
		ev = &e
	}

	r.ConfirmedID = &productID
	r.State = StateConfirmed
	return ev, nil
}

// RejectAll routes a reviewed item to new-product creation after the user
// declines every shown candidate.
func (r *Resolution) RejectAll() {
	if r.State == StatePendingReview || r.State == StateAutoMatched {
		r.State = StateNewProduct
		r.Best = nil
		r.Candidates = nil
		r.AutoMatched = false
	}
}
