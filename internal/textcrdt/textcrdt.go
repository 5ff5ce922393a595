// Package textcrdt implements the positional text CRDT: client-relative
// insert/delete operations are rebased against a per-session Fenwick tree
// (internal/bit) that tracks the cumulative drift injected by edits
// committed after the session's baseline.
package textcrdt

import (
	"errors"
	"unicode/utf8"

	"github.com/styrainc/rtvolume/internal/bit"
)

// ErrNegativeOffset is returned when an operation rebases to a negative
// physical offset; the whole batch containing it must be rejected.
var ErrNegativeOffset = errors.New("textcrdt: operation rebases to a negative offset")

// Op is either an Insert or a Delete, applied against a document at
// position At as the client observed it at the session's baseline
// timestamp. Exactly one of Text (insert) or Length (delete) is set by
// convention; constructors below enforce this.
type Op struct {
	At     int
	Text   string // insert payload; empty for deletes
	Length int    // delete length in runes; zero for inserts
	Insert bool   // discriminator: true => Insert, false => Delete
}

// Ins constructs an insert operation.
func Ins(at int, text string) Op { return Op{At: at, Text: text, Insert: true} }

// Del constructs a delete operation.
func Del(at, length int) Op { return Op{At: at, Length: length, Insert: false} }

// Apply runs ops, in order, against doc using session to rebase each op's
// client-relative position. session is cloned before the first mutation:
// on success the clone (with accumulated drift) is returned for the
// caller to commit in place of the prior session state; on failure the
// clone is simply discarded and doc is returned unchanged, satisfying the
// "roll back in reverse" requirement without needing an explicit undo log.
//
// Document positions and lengths are rune-indexed, Go's natural analogue
// of the "code unit" indexing used at the wire layer.
func Apply(doc string, ops []Op, session *bit.Tree) (newDoc string, newSession *bit.Tree, err error) {
	runes := []rune(doc)
	staged := session.Clone()

	for _, op := range ops {
		off64 := staged.RangeQuery(0, op.At) + int64(op.At)
		if off64 < 0 {
			return doc, nil, ErrNegativeOffset
		}
		off := int(off64)
		if off > len(runes) {
			off = len(runes)
		}

		if op.Insert {
			ins := []rune(op.Text)
			next := make([]rune, 0, len(runes)+len(ins))
			next = append(next, runes[:off]...)
			next = append(next, ins...)
			next = append(next, runes[off:]...)
			runes = next
			staged.Update(op.At, int64(len(ins)))
		} else {
			end := off + op.Length
			if end > len(runes) {
				end = len(runes)
			}
			if end < off {
				end = off
			}
			next := make([]rune, 0, len(runes)-(end-off))
			next = append(next, runes[:off]...)
			next = append(next, runes[end:]...)
			runes = next
			staged.Update(op.At, -int64(op.Length))
		}
	}

	return string(runes), staged, nil
}

// RuneLen returns the rune length of s, the unit in which Apply measures
// At and Length.
func RuneLen(s string) int { return utf8.RuneCountInString(s) }
