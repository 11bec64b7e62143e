package types

// MatchStrategy names the rule that produced a duplicate group
type MatchStrategy string

const (
	MatchIDCollision MatchStrategy = "id-collision"
	MatchPhone       MatchStrategy = "phone-match"
	MatchEmail       MatchStrategy = "email-match"
)

// IsValid checks if the match strategy value is valid
func (s MatchStrategy) IsValid() bool {
	switch s {
	case MatchIDCollision, MatchPhone, MatchEmail:
		return true
	}
	return false
}

// DuplicateGroup is a set of contacts believed to represent the same person.
// Contacts are in scan order.
type DuplicateGroup struct {
	Strategy MatchStrategy `json:"strategy"`
	Key      string        `json:"key"`
	Contacts []*Contact    `json:"contacts"`
}

// Len returns the number of members
func (g DuplicateGroup) Len() int {
	return len(g.Contacts)
}

// IDs returns member ids in group order
func (g DuplicateGroup) IDs() []string {
	ids := make([]string, 0, len(g.Contacts))
	for _, c := range g.Contacts {
		ids = append(ids, c.ID)
	}
	return ids
}

// Member returns the first member with the given id, or nil
func (g DuplicateGroup) Member(id string) *Contact {
	for _, c := range g.Contacts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Contains reports whether any member has the given id
func (g DuplicateGroup) Contains(id string) bool {
	return g.Member(id) != nil
}
