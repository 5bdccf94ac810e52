package domain

import (
	"sort"
	"strconv"
	"strings"
)

// RecipientID is the externally issued numeric identity of a chat user.
type RecipientID int64

func (id RecipientID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether id can name a real user.
func (id RecipientID) Valid() bool { return id > 0 }

// ParseRecipientID parses an admin-supplied identity argument.
func ParseRecipientID(s string) (RecipientID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidRecipient
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidRecipient
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidRecipient
	}
	return RecipientID(n), nil
}

// SortRecipients orders ids ascending in place and returns the slice.
func SortRecipients(ids []RecipientID) []RecipientID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Profile is the display metadata last observed for a recipient.
type Profile struct {
	ID          RecipientID
	DisplayName string
	Handle      string
}

// Label renders "{id} - {displayName} @{handle}", leaving out empty parts. The "@" is added
// only when the handle lacks one; the handle is otherwise shown as stored.
func (p Profile) Label() string {
	var b strings.Builder
	b.WriteString(p.ID.String())
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		b.WriteString(" - ")
		b.WriteString(name)
	}
	if handle := strings.TrimSpace(p.Handle); handle != "" {
		b.WriteByte(' ')
		if !strings.HasPrefix(handle, "@") {
			b.WriteByte('@')
		}
		b.WriteString(handle)
	}
	return b.String()
}

// Operators is the fixed set of identities allowed to run management operations.
type Operators map[RecipientID]struct{}

// NewOperators builds the operator set from configured ids.
func NewOperators(ids ...int64) Operators {
	ops := make(Operators, len(ids))
	for _, id := range ids {
		ops[RecipientID(id)] = struct{}{}
	}
	return ops
}

// Is reports whether id is an operator.
func (o Operators) Is(id RecipientID) bool {
	_, ok := o[id]
	return ok
}

// IDs returns the operator ids ascending.
func (o Operators) IDs() []RecipientID {
	ids := make([]RecipientID, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	return SortRecipients(ids)
}

// Authorize returns ErrNotOperator unless actor is an operator.
func (o Operators) Authorize(actor RecipientID) error {
	if !o.Is(actor) {
		return ErrNotOperator
	}
	return nil
}
