package types

// EvidenceList holds the evidence references (URLs or free text) a party
// attached to a dispute. Stored as a jsonb array.
type EvidenceList []string

// Append returns a new list with the provided items added, dropping empties.
func (e EvidenceList) Append(items ...string) EvidenceList {
	out := e
	for _, item := range items {
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
