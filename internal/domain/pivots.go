package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// PivotSet is one set of classic pivot levels. JSON keys match
// case-insensitively, so {"p": ...} and {"P": ...} decode the same.
type PivotSet struct {
	S2 Number `json:"S2"`
	S1 Number `json:"S1"`
	P  Number `json:"P"`
	R1 Number `json:"R1"`
	R2 Number `json:"R2"`
	R3 Number `json:"R3"`
}

// IsZero reports whether no level is present.
func (p PivotSet) IsZero() bool {
	return !p.S2.Valid && !p.S1.Valid && !p.P.Valid && !p.R1.Valid && !p.R2.Valid && !p.R3.Valid
}

// PivotPoints holds pivot data in either the legacy flat shape or keyed by
// timeframe ("4h", "1d", "1w"), or both.
type PivotPoints struct {
	Flat  PivotSet
	Keyed map[Timeframe]PivotSet
}

// Empty reports whether there is no pivot data at all.
func (pp PivotPoints) Empty() bool {
	return pp.Flat.IsZero() && len(pp.Keyed) == 0
}

// Resolve returns the pivot set for tf. The lookup is by lower-cased key; when
// tf is not present the flat form is returned. ok is false when the result
// carries no levels.
func (pp PivotPoints) Resolve(tf Timeframe) (PivotSet, bool) {
	if set, found := pp.Keyed[Timeframe(strings.ToLower(string(tf)))]; found {
		return set, !set.IsZero()
	}
	return pp.Flat, !pp.Flat.IsZero()
}

// UnmarshalJSON accepts both shapes. Any member whose value is an object is a
// timeframe entry; scalar members form the flat set.
func (pp *PivotPoints) UnmarshalJSON(b []byte) error {
	*pp = PivotPoints{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(b, &members); err != nil {
		return err
	}
	for k, raw := range members {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var set PivotSet
		if err := json.Unmarshal(raw, &set); err != nil {
			return err
		}
		if pp.Keyed == nil {
			pp.Keyed = make(map[Timeframe]PivotSet)
		}
		pp.Keyed[Timeframe(strings.ToLower(k))] = set
	}

	// Object members are skipped by Number's decoder, so this reads only the
	// scalar levels.
	return json.Unmarshal(b, &pp.Flat)
}

// MarshalJSON writes the keyed sets plus any flat levels in one object.
func (pp PivotPoints) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(pp.Keyed)+6)
	for tf, set := range pp.Keyed {
		out[string(tf)] = set
	}
	flat := map[string]Number{
		"S2": pp.Flat.S2, "S1": pp.Flat.S1, "P": pp.Flat.P,
		"R1": pp.Flat.R1, "R2": pp.Flat.R2, "R3": pp.Flat.R3,
	}
	for k, v := range flat {
		if v.Valid {
			out[k] = v
		}
	}
	return json.Marshal(out)
}
