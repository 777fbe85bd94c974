// Package membership computes the set deltas that keep a Journey's member
// list and a Trip's journey back-reference consistent. The functions are
// pure; the transaction orchestrator validates that target journeys exist
// and translates the ops into idempotent array updates on the store.
package membership

// OpKind distinguishes membership additions from removals.
type OpKind int

const (
	// OpAdd adds the trip id to the journey's member list if absent.
	OpAdd OpKind = iota
	// OpRemove removes the trip id from the journey's member list if present.
	OpRemove
)

// Op is one idempotent change to a journey's member list.
type Op struct {
	Kind      OpKind
	JourneyID string
	TripID    string
}

// Link computes the member-list operations implied by a trip's journey
// assignment changing from old to new. Nil means unassigned. An unchanged
// assignment yields no ops; the caller is still responsible for marking the
// journey for route recomputation if the trip's route or dates changed.
func Link(oldJourneyID, newJourneyID *string, tripID string) []Op {
	if equal(oldJourneyID, newJourneyID) {
		return nil
	}
	var ops []Op
	if oldJourneyID != nil {
		ops = append(ops, Op{Kind: OpRemove, JourneyID: *oldJourneyID, TripID: tripID})
	}
	if newJourneyID != nil {
		ops = append(ops, Op{Kind: OpAdd, JourneyID: *newJourneyID, TripID: tripID})
	}
	return ops
}

// Unlink computes the removal op for a trip being deleted. Nil journeyID
// (trip was never in a journey) yields no ops.
func Unlink(journeyID *string, tripID string) []Op {
	if journeyID == nil {
		return nil
	}
	return []Op{{Kind: OpRemove, JourneyID: *journeyID, TripID: tripID}}
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
