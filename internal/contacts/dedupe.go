// Package contacts reduces the engine's raw contact list to one canonical
// entry per phone number.
package contacts

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
)

// Deduplicate returns one contact per normalized number (or id when the
// number is unknown), without groups, saved contacts first and then by
// display name. Running it on its own output returns the same list.
func Deduplicate(in []models.Contact) []models.Contact {
	survivors := make(map[string]models.Contact, len(in))
	keys := make([]string, 0, len(in))

	for _, c := range in {
		if c.IsGroup {
			continue
		}

		key := Key(c)
		survivor, seen := survivors[key]
		if !seen {
			survivors[key] = c
			keys = append(keys, key)
			continue
		}

		if shouldReplace(survivor, c) {
			survivors[key] = merge(survivor, c)
		}
	}

	out := make([]models.Contact, 0, len(keys))
	for _, key := range keys {
		out = append(out, survivors[key])
	}
	Sort(out)
	return out
}

// Key is the grouping key of a contact
func Key(c models.Contact) string {
	if n := Digits(c.NormalizedNumber); n != "" {
		return n
	}
	return c.ID
}

// Sort orders contacts saved-first, then by display name, then by id
func Sort(list []models.Contact) {
	col := collate.New(language.Und, collate.IgnoreCase)
	slices.SortStableFunc(list, func(a, b models.Contact) int {
		if a.IsKnownContact != b.IsKnownContact {
			if a.IsKnownContact {
				return -1
			}
			return 1
		}
		if c := col.CompareString(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Digits strips everything but ASCII digits
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneLike reports whether a display name is empty or just a number
func PhoneLike(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	first := []rune(name)[0]
	return first == '+' || unicode.IsDigit(first)
}

// Any matching rule replaces the survivor.
func shouldReplace(survivor, incoming models.Contact) bool {
	if PhoneLike(survivor.DisplayName) && !PhoneLike(incoming.DisplayName) {
		return true
	}
	if incoming.VerifiedName != "" && survivor.DisplayName == survivor.PushName {
		return true
	}
	if incoming.IsKnownContact && !survivor.IsKnownContact {
		return true
	}
	return false
}

func merge(survivor, incoming models.Contact) models.Contact {
	merged := incoming
	if merged.VerifiedName == "" {
		merged.VerifiedName = survivor.VerifiedName
	}
	if merged.PushName == "" {
		merged.PushName = survivor.PushName
	}
	if merged.AvatarURL == "" {
		merged.AvatarURL = survivor.AvatarURL
	}
	merged.IsKnownContact = incoming.IsKnownContact || survivor.IsKnownContact
	merged.IsBlocked = incoming.IsBlocked || survivor.IsBlocked
	merged.DisplayName = bestName(survivor, incoming, merged.VerifiedName)
	return merged
}

// bestName ranks verified names over plain names over numbers.
// Ties go to the incoming entry.
func bestName(survivor, incoming models.Contact, verified string) string {
	best, bestRank := incoming.DisplayName, nameRank(incoming.DisplayName, incoming)
	if r := nameRank(survivor.DisplayName, survivor); r > bestRank {
		best, bestRank = survivor.DisplayName, r
	}
	if !PhoneLike(verified) && bestRank < 2 {
		best = verified
	}
	return best
}

func nameRank(name string, c models.Contact) int {
	switch {
	case PhoneLike(name):
		return 0
	case c.VerifiedName != "" && name == c.VerifiedName:
		return 2
	default:
		return 1
	}
}
