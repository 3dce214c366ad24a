package core

// ChangeOp is the kind of incremental change applied to a record list.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Change is one incremental mutation of the record set, as delivered by the
// store's change feed. Consumers apply it to their in-memory list and re-run
// the pure aggregation; the engine itself has no update special cases.
type Change struct {
	Op     ChangeOp
	Record Subscription
}

// ApplyChange returns a new record list with the change applied. The input
// slice is never mutated. Inserts prepend (newest first, matching the list
// display); updates replace by ID and fall back to a prepend when the ID is
// not present; deletes of unknown IDs are no-ops.
func ApplyChange(subs []Subscription, ch Change) []Subscription {
	switch ch.Op {
	case OpInsert:
		out := make([]Subscription, 0, len(subs)+1)
		out = append(out, ch.Record)
		return append(out, subs...)
	case OpUpdate:
		out := make([]Subscription, len(subs))
		copy(out, subs)
		for i := range out {
			if out[i].ID == ch.Record.ID {
				out[i] = ch.Record
				return out
			}
		}
		return append([]Subscription{ch.Record}, subs...)
	case OpDelete:
		out := make([]Subscription, 0, len(subs))
		for _, s := range subs {
			if s.ID != ch.Record.ID {
				out = append(out, s)
			}
		}
		return out
	}
	out := make([]Subscription, len(subs))
	copy(out, subs)
	return out
}
