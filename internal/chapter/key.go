// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package chapter

import (
	"regexp"
	"strings"

	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/pkg/slug"
)

// decimalRegex matches a plain non-negative decimal number.
var decimalRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// # Chapter Keys

// Key is the identity of a logical chapter within a series: exactly one of
// Number (canonical decimal string) or Slug is set.
//
// Numeric and slug keys occupy disjoint identity spaces — chapter "100" and
// slug "extra-1" never merge, and numeric identity is exact string equality
// of the canonical form, never numeric comparison ("1105" and "1105.5" are
// distinct chapters, not the same value at different precision).
type Key struct {
	Number string
	Slug   string
}

// IsNumeric reports whether the key lives in the numeric identity space.
func (k Key) IsNumeric() bool { return k.Number != "" }

// String renders the key with its identity-space prefix, suitable for lock
// keys. The prefix keeps "n:100" and "s:100" apart even for a slug that
// happens to look numeric.
func (k Key) String() string {
	if k.IsNumeric() {
		return "n:" + k.Number
	}
	return "s:" + k.Slug
}

/*
NewKey computes the chapter key for an ingest payload.

Description: A present chapter number wins over a slug (numbers are the
richer ordering key); a payload with neither is rejected as invalid input.
The result is deterministic: the same payload always yields the same key.

Parameters:
  - number: *string (Raw decimal chapter number, or nil)
  - chapterSlug: *string (Raw special-chapter label, or nil)

Returns:
  - Key: The canonical identity.
  - error: UNPROCESSABLE when neither component yields a usable key.
*/
func NewKey(number, chapterSlug *string) (Key, error) {
	if number != nil && strings.TrimSpace(*number) != "" {
		canonical, err := CanonicalNumber(*number)
		if err != nil {
			return Key{}, err
		}
		return Key{Number: canonical}, nil
	}

	if chapterSlug != nil {
		normalized := slug.From(*chapterSlug)
		if normalized != "" {
			return Key{Slug: normalized}, nil
		}
	}

	return Key{}, apperr.Unprocessable("Chapter has neither a number nor a slug")
}

/*
CanonicalNumber renders a raw chapter number as its exact canonical decimal
string.

Description: No float coercion ever happens — "1105.5" can never collapse
into "1105". Canonicalization strips superfluous leading zeros and trailing
fractional zeros so that "007.50" and "7.5" are the same chapter, while
anything that is not a plain non-negative decimal is rejected.

Parameters:
  - raw: string (Upstream-reported chapter number)

Returns:
  - string: Canonical decimal form.
  - error: UNPROCESSABLE for malformed input.
*/
func CanonicalNumber(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !decimalRegex.MatchString(trimmed) {
		return "", apperr.Unprocessable("Chapter number is not a plain decimal: " + raw)
	}

	integer, fraction, hasFraction := strings.Cut(trimmed, ".")

	// Strip superfluous leading zeros, keeping at least one digit.
	integer = strings.TrimLeft(integer, "0")
	if integer == "" {
		integer = "0"
	}

	if !hasFraction {
		return integer, nil
	}

	// Strip trailing fractional zeros; a fully-zero fraction drops entirely.
	fraction = strings.TrimRight(fraction, "0")
	if fraction == "" {
		return integer, nil
	}

	return integer + "." + fraction, nil
}
