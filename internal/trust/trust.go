// Package trust answers "who is this sender to this account" from the
// contact directory. It is a pure lookup and never mutates contacts.
package trust

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// Contact is a directory entry owned by exactly one account.
type Contact struct {
	ID        string   `json:"id" db:"id"`
	AccountID string   `json:"account_id" db:"account_id"`
	Address   string   `json:"address" db:"address"`
	Name      string   `json:"name,omitempty" db:"name"`
	Favorite  bool     `json:"favorite" db:"favorite"`
	Blocked   bool     `json:"blocked" db:"blocked"`
	Tags      []string `json:"tags,omitempty" db:"tags"`
}

// Directory resolves contacts. Implementations must match on the normalized address.
// If no contact exists, it returns (Contact{}, false, nil).
type Directory interface {
	FindContact(ctx context.Context, accountID, address string) (Contact, bool, error)
}

// Sender is the trust view of an inbound address.
type Sender struct {
	Address        string   `json:"address"`
	Name           string   `json:"name,omitempty"`
	IsSavedContact bool     `json:"is_saved_contact"`
	IsFavorite     bool     `json:"is_favorite"`
	IsBlocked      bool     `json:"is_blocked"`
	Tags           []string `json:"tags,omitempty"`
}

// HasAnyTag reports whether the sender carries at least one of tags (case-insensitive).
func (s Sender) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		want = strings.ToLower(strings.TrimSpace(want))
		if want == "" {
			continue
		}
		for _, have := range s.Tags {
			if strings.ToLower(strings.TrimSpace(have)) == want {
				return true
			}
		}
	}
	return false
}

type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

var ErrInvalidArgument = errors.New("trust: invalid argument")

// Resolve looks the address up in the account's directory.
// An unknown address resolves to a zero-trust Sender, not an error.
func (r *Resolver) Resolve(ctx context.Context, accountID, address string) (Sender, error) {
	addr := NormalizeAddress(address)
	if accountID == "" || addr == "" {
		return Sender{}, ErrInvalidArgument
	}
	out := Sender{Address: addr}
	if r.dir == nil {
		return out, nil
	}

	c, ok, err := r.dir.FindContact(ctx, accountID, addr)
	if err != nil {
		return Sender{}, err
	}
	if !ok {
		return out, nil
	}
	out.Name = c.Name
	out.IsSavedContact = true
	out.IsFavorite = c.Favorite
	out.IsBlocked = c.Blocked
	out.Tags = append([]string(nil), c.Tags...)
	return out, nil
}

// NormalizeAddress canonicalizes a phone-style address so directory lookups
// and loop guards compare like with like. Formatting characters are dropped,
// a leading '+' is kept, and non-numeric addresses (e.g. "Anonymous",
// short codes with letters) are lower-cased and otherwise left alone.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting
		default:
			return strings.ToLower(s)
		}
	}
	return b.String()
}

// SameAddress compares two addresses after normalization.
func SameAddress(a, b string) bool {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	return na != "" && na == nb
}
