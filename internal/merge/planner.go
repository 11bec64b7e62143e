package merge

import (
	"time"

	"github.com/steveyegge/crm/internal/types"
)

// Plan computes the surviving contact document for a group. The primary's
// non-empty values are kept; empty ones are filled from the first secondary
// (in group order) that has a value. Tags are the union of all members,
// primary's tags first. Plan has no side effects.
func Plan(group types.DuplicateGroup, primaryID string, now time.Time) (*types.ContactPatch, error) {
	if group.Len() < 2 {
		return nil, &PlanningError{GroupKey: group.Key, PrimaryID: primaryID, Err: ErrEmptyGroup}
	}
	primary := group.Member(primaryID)
	if primary == nil {
		return nil, &PlanningError{GroupKey: group.Key, PrimaryID: primaryID, Err: ErrPrimaryNotFound}
	}

	patch := &types.ContactPatch{
		Name:        primary.Name,
		Email:       primary.Email,
		Phone:       primary.Phone,
		Tags:        []string{},
		Fields:      make(map[string]string),
		LastUpdated: now,
	}

	seenTags := make(map[string]bool)
	addTags := func(tags []string) {
		for _, t := range tags {
			if t == "" || seenTags[t] {
				continue
			}
			seenTags[t] = true
			patch.Tags = append(patch.Tags, t)
		}
	}
	addTags(primary.Tags)

	for k, v := range primary.Fields {
		if v != "" {
			patch.Fields[k] = v
		}
	}

	for _, c := range group.Contacts {
		if c == primary || c.ID == primaryID {
			continue
		}
		addTags(c.Tags)
		fill(&patch.Name, c.Name)
		fill(&patch.Email, c.Email)
		fill(&patch.Phone, c.Phone)
		for k, v := range c.Fields {
			if v == "" {
				continue
			}
			if patch.Fields[k] == "" {
				patch.Fields[k] = v
			}
		}
	}

	return patch, nil
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// Losers returns the ids of members other than the primary, in group order
func Losers(group types.DuplicateGroup, primaryID string) []string {
	var ids []string
	for _, c := range group.Contacts {
		if c.ID != primaryID {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
