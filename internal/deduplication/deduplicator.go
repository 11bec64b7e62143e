package deduplication

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/crm/internal/types"
)

// Detector finds groups of contacts that represent the same person.
//
// Example usage:
//
//	detector, err := NewDetector(DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	result := detector.Run(contacts)
//	for _, c := range result.IDCollisions {
//	    log.Printf("id %s listed %d times", c.ID, c.Count)
//	}
//	for _, g := range result.Groups {
//	    log.Printf("%s %s: %v", g.Strategy, g.Key, g.IDs())
//	}
//
// Detection is a pure function of its input: the same contacts in the same
// order always produce the same groups.
type Detector struct {
	strategies []MatchStrategy
}

// NewDetector builds a detector running the id-collision pass followed by
// the configured strategies.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	strategies := []MatchStrategy{IDCollisionStrategy{}}
	for _, name := range cfg.Strategies {
		s, ok := StrategyFor(name)
		if !ok {
			return nil, fmt.Errorf("unknown match strategy %q", name)
		}
		strategies = append(strategies, s)
	}
	return &Detector{strategies: strategies}, nil
}

// NewDetectorWithStrategies builds a detector from explicit passes, run in
// the given order.
func NewDetectorWithStrategies(strategies ...MatchStrategy) *Detector {
	return &Detector{strategies: strategies}
}

// IDCollision is a storage id that appeared more than once in one listing
type IDCollision struct {
	ID       string           `json:"id"`
	Count    int              `json:"count"`
	Contacts []*types.Contact `json:"-"`
}

// DetectionResult represents the result of a detection run
type DetectionResult struct {
	// Groups are the mergeable duplicate groups, pairwise disjoint
	Groups []types.DuplicateGroup `json:"groups"`

	// IDCollisions are ids that were listed more than once. Their members
	// are excluded from every group.
	IDCollisions []IDCollision `json:"id_collisions,omitempty"`

	// Statistics about the detection run
	Stats DetectionStats `json:"stats"`
}

// DetectionStats provides metrics about a detection run
type DetectionStats struct {
	// TotalContacts is the number of contacts scanned
	TotalContacts int `json:"total_contacts"`

	// GroupCount is the number of mergeable groups
	GroupCount int `json:"group_count"`

	// DuplicateContacts is the number of contacts in mergeable groups
	DuplicateContacts int `json:"duplicate_contacts"`

	// IDCollisionCount is the number of colliding ids
	IDCollisionCount int `json:"id_collision_count"`

	// ByStrategy counts mergeable groups per strategy
	ByStrategy map[types.MatchStrategy]int `json:"by_strategy"`

	// ProcessingTimeMs is the time taken for detection in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Detect returns the mergeable duplicate groups in contacts
func (d *Detector) Detect(contacts []*types.Contact) []types.DuplicateGroup {
	return d.Run(contacts).Groups
}

// Run executes every pass and returns groups, anomalies and statistics
func (d *Detector) Run(contacts []*types.Contact) *DetectionResult {
	start := time.Now()
	processed := make([]bool, len(contacts))
	result := &DetectionResult{
		Groups: []types.DuplicateGroup{},
		Stats: DetectionStats{
			TotalContacts: len(contacts),
			ByStrategy:    make(map[types.MatchStrategy]int),
		},
	}

	for _, s := range d.strategies {
		for _, idxs := range s.Find(contacts, processed) {
			members := make([]*types.Contact, 0, len(idxs))
			for _, i := range idxs {
				processed[i] = true
				members = append(members, contacts[i])
			}
			key := s.Key(members[0])

			if !s.Mergeable() {
				slog.Warn("contact listed more than once, excluding from merge",
					"contact_id", key, "count", len(members), "strategy", s.Name())
				result.IDCollisions = append(result.IDCollisions, IDCollision{
					ID:       key,
					Count:    len(members),
					Contacts: members,
				})
				continue
			}

			result.Groups = append(result.Groups, types.DuplicateGroup{
				Strategy: s.Name(),
				Key:      key,
				Contacts: members,
			})
			result.Stats.ByStrategy[s.Name()]++
			result.Stats.DuplicateContacts += len(members)
		}
	}

	result.Stats.GroupCount = len(result.Groups)
	result.Stats.IDCollisionCount = len(result.IDCollisions)
	result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}

// Mergeable returns the groups that can be merged
func (r *DetectionResult) Mergeable() []types.DuplicateGroup {
	return r.Groups
}

// GroupFor returns the group containing the contact id
func (r *DetectionResult) GroupFor(contactID string) (types.DuplicateGroup, bool) {
	for _, g := range r.Groups {
		if g.Contains(contactID) {
			return g, true
		}
	}
	return types.DuplicateGroup{}, false
}

// Validate checks if the detection result has valid values
func (r *DetectionResult) Validate() error {
	if r.Stats.GroupCount != len(r.Groups) {
		return fmt.Errorf("stats.group_count (%d) does not match groups length (%d)",
			r.Stats.GroupCount, len(r.Groups))
	}
	if r.Stats.IDCollisionCount != len(r.IDCollisions) {
		return fmt.Errorf("stats.id_collision_count (%d) does not match id_collisions length (%d)",
			r.Stats.IDCollisionCount, len(r.IDCollisions))
	}

	seen := make(map[string]int)
	members := 0
	for gi, g := range r.Groups {
		if g.Len() < 2 {
			return fmt.Errorf("group %d has %d members, need at least 2", gi, g.Len())
		}
		if !g.Strategy.IsValid() || g.Strategy == types.MatchIDCollision {
			return fmt.Errorf("group %d has non-mergeable strategy %q", gi, g.Strategy)
		}
		if g.Key == "" {
			return fmt.Errorf("group %d has an empty match key", gi)
		}
		for _, c := range g.Contacts {
			if prev, ok := seen[c.ID]; ok {
				return fmt.Errorf("contact %s appears in groups %d and %d", c.ID, prev, gi)
			}
			seen[c.ID] = gi
		}
		members += g.Len()
	}
	if r.Stats.DuplicateContacts != members {
		return fmt.Errorf("stats.duplicate_contacts (%d) does not match group members (%d)",
			r.Stats.DuplicateContacts, members)
	}

	for _, c := range r.IDCollisions {
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("colliding id %s also appears in a mergeable group", c.ID)
		}
	}
	return nil
}
