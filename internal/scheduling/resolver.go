package scheduling

import (
	"hr-scheduling-backend/internal/model"
	"hr-scheduling-backend/internal/store"
)

// Outcome is the decision taken for a (date, time) key.
type Outcome int

const (
	// FreeNew: no active row at the key; a new one must be inserted.
	FreeNew Outcome = iota
	// FreeExisting: an available row exists and must be reused.
	FreeExisting
	// OccupiedBySame: the requester already holds the key.
	OccupiedBySame
	// OccupiedByOther: another application holds the key.
	OccupiedByOther
)

func (o Outcome) String() string {
	switch o {
	case FreeNew:
		return "free-new"
	case FreeExisting:
		return "free-existing"
	case OccupiedBySame:
		return "occupied-by-same"
	case OccupiedByOther:
		return "occupied-by-other"
	}
	return "unknown"
}

// Resolution is the result of ConflictResolver.Resolve. Existing is set for
// every outcome except FreeNew.
type Resolution struct {
	Outcome  Outcome
	Existing *model.InterviewSlot
}

// ConflictResolver decides whether a key may be occupied by an application.
// It must run inside the transaction that performs the subsequent write.
type ConflictResolver struct{}

// Resolve inspects the active rows at key. An empty applicationID asks
// only whether the key is free.
func (ConflictResolver) Resolve(tx store.SlotTx, key model.SlotKey, applicationID string) (Resolution, error) {
	rows, err := tx.LockActiveAt(key)
	if err != nil {
		return Resolution{}, err
	}

	var free *model.InterviewSlot
	for i := range rows {
		row := &rows[i]
		if !row.IsAvailable {
			if applicationID != "" && row.HeldBy(applicationID) {
				return Resolution{Outcome: OccupiedBySame, Existing: row}, nil
			}
			return Resolution{Outcome: OccupiedByOther, Existing: row}, nil
		}
		if free == nil {
			free = row
		}
	}

	if free != nil {
		return Resolution{Outcome: FreeExisting, Existing: free}, nil
	}
	return Resolution{Outcome: FreeNew}, nil
}
