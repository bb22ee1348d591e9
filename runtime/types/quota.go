package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Quota represents a remaining-conversation count as reported by the
// authorization gateway. The gateway's D1 store can return either an
// integer or the literal string "unlimited" for unrestricted plans; Quota
// normalizes both into a single sum type so callers never juggle raw JSON.
type Quota struct {
	unlimited bool
	n         uint64
}

// UnlimitedQuota is the canonical unlimited value.
var UnlimitedQuota = Quota{unlimited: true}

// FiniteQuota constructs a bounded quota of n remaining conversations.
func FiniteQuota(n uint64) Quota {
	return Quota{n: n}
}

// IsUnlimited reports whether this quota has no upper bound.
func (q Quota) IsUnlimited() bool {
	return q.unlimited
}

// Value returns the finite remaining count. It returns math.MaxUint64 when
// the quota is unlimited; callers that branch on IsUnlimited first never
// need this sentinel, but it keeps arithmetic on Value safe either way.
func (q Quota) Value() uint64 {
	if q.unlimited {
		return math.MaxUint64
	}
	return q.n
}

// Exhausted reports whether zero conversations remain. An unlimited quota
// is never exhausted.
func (q Quota) Exhausted() bool {
	return !q.unlimited && q.n == 0
}

// String renders the quota the way the spec requires it to ever be
// displayed: the literal "unlimited", never a finite stand-in number.
func (q Quota) String() string {
	if q.unlimited {
		return "unlimited"
	}
	return strconv.FormatUint(q.n, 10)
}

var unlimitedLiteral = []byte(`"unlimited"`)

// MarshalJSON renders an unlimited quota as the string "unlimited" and a
// finite quota as a plain number, matching the gateway's own wire format.
func (q Quota) MarshalJSON() ([]byte, error) {
	if q.unlimited {
		return unlimitedLiteral, nil
	}
	return json.Marshal(q.n)
}

// UnmarshalJSON accepts a JSON number, a numeric string, or the literal
// string "unlimited" (case-insensitive gateway responses have been observed
// as "Unlimited" too, so compare case-insensitively).
func (q *Quota) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*q = Quota{}
		return nil
	}
	var asString string
	if err := json.Unmarshal(trimmed, &asString); err == nil {
		if isUnlimitedWord(asString) {
			*q = UnlimitedQuota
			return nil
		}
		var n uint64
		if err := json.Unmarshal([]byte(asString), &n); err != nil {
			return err
		}
		*q = FiniteQuota(n)
		return nil
	}
	var n uint64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*q = FiniteQuota(n)
	return nil
}

func isUnlimitedWord(s string) bool {
	if len(s) != len("unlimited") {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != "unlimited"[i] {
			return false
		}
	}
	return true
}
