package model

import (
	"encoding/json"

	"boardsync/pkg/logger"
)

// VoteSet is the set of option indices one voter has selected. Older records
// stored a single index instead of a list; decoding normalizes either shape,
// and encoding always writes the list form so the legacy shape never comes
// back out of the ledger.
type VoteSet []int

func (v *VoteSet) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch val := raw.(type) {
	case float64:
		// Legacy scalar vote record.
		*v = VoteSet{int(val)}
	case []any:
		out := make(VoteSet, 0, len(val))
		for _, entry := range val {
			f, ok := entry.(float64)
			if !ok {
				logger.Sugar.Warnf("Dropping non-integer entry in vote record: %v", entry)
				continue
			}
			out = append(out, int(f))
		}
		*v = out
	default:
		logger.Sugar.Warnf("Dropping vote record with unrecognized shape: %s", string(b))
		*v = VoteSet{}
	}
	return nil
}

func (v VoteSet) MarshalJSON() ([]byte, error) {
	if v == nil {
		v = VoteSet{}
	}
	return json.Marshal([]int(v))
}

func (v VoteSet) Has(option int) bool {
	for _, o := range v {
		if o == option {
			return true
		}
	}
	return false
}

// Without returns the set with one option removed, preserving order.
func (v VoteSet) Without(option int) VoteSet {
	out := make(VoteSet, 0, len(v))
	for _, o := range v {
		if o != option {
			out = append(out, o)
		}
	}
	return out
}
