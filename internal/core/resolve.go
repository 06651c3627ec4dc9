package core

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the duplicate resolver's decision for a valid row.
type Outcome int

const (
	Accept Outcome = iota
	RejectDuplicate
)

func (o Outcome) String() string {
	if o == Accept {
		return "accept"
	}
	return "reject_duplicate"
}

// Decision is a resolved row. Conflict is set for RejectDuplicate.
type Decision struct {
	Row      int
	Line     int
	Outcome  Outcome
	Record   any
	Key      Key
	Conflict *DuplicateConflict
}

// Resolver checks valid rows against the store and against rows accepted
// earlier in the same batch. It never modifies stored records. A Resolver is
// scoped to one batch and is not safe for concurrent use.
type Resolver struct {
	def   EntityDefinition
	store Store
	seen  map[string]seenKey
}

type seenKey struct {
	row int
	key Key
}

// NewResolver returns a resolver for one batch of def.
func NewResolver(def EntityDefinition, store Store) *Resolver {
	return &Resolver{def: def, store: store, seen: make(map[string]seenKey)}
}

// Resolve decides Accept or RejectDuplicate for a valid verdict. The store
// check is an early exit; the store's own constraint still guards the write.
func (r *Resolver) Resolve(ctx context.Context, v Verdict) (Decision, error) {
	if !v.Valid() {
		return Decision{}, fmt.Errorf("resolve row %d: verdict is invalid", v.Row)
	}

	d := Decision{Row: v.Row, Line: v.Line, Record: v.Record, Key: v.Key}

	if prev, ok := r.seen[v.Key.fingerprint()]; ok {
		d.Outcome = RejectDuplicate
		d.Conflict = &DuplicateConflict{Entity: r.def.Info.Key, Existing: prev.key, ExistingRow: prev.row}
		return d, nil
	}

	existing, err := r.def.Find(ctx, r.store, v.Key)
	switch {
	case err == nil:
		d.Outcome = RejectDuplicate
		d.Conflict = &DuplicateConflict{Entity: r.def.Info.Key, Existing: existing.Key}
		return d, nil
	case errors.Is(err, ErrNotFound):
	default:
		return Decision{}, fmt.Errorf("lookup %s: %w", v.Key, err)
	}

	r.seen[v.Key.fingerprint()] = seenKey{row: v.Row, key: v.Key}
	d.Outcome = Accept
	return d, nil
}

// ResolveUpdate checks that key is free for the record with the given id.
// A different record holding the key yields *DuplicateConflict with Update set.
func ResolveUpdate(ctx context.Context, def EntityDefinition, store Store, id int64, key Key) error {
	existing, err := def.Find(ctx, store, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup %s: %w", key, err)
	case existing.ID == id:
		return nil
	default:
		return &DuplicateConflict{Entity: def.Info.Key, Existing: existing.Key, Update: true}
	}
}
