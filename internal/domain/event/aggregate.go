package event

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Aggregate is an event together with its participant and category arenas
type Aggregate struct {
	Event        *Event
	Participants map[uuid.UUID]*Participant
	Categories   map[uuid.UUID]*Category
}

func NewAggregate(evt *Event, participants []*Participant, categories []*Category) *Aggregate {
	agg := &Aggregate{
		Event:        evt,
		Participants: make(map[uuid.UUID]*Participant, len(participants)),
		Categories:   make(map[uuid.UUID]*Category, len(categories)),
	}
	for _, p := range participants {
		agg.Participants[p.UserID] = p
	}
	for _, c := range categories {
		if c.Members == nil {
			c.Members = map[uuid.UUID]Membership{}
		}
		agg.Categories[c.ID] = c
	}
	return agg
}

func (a *Aggregate) Participant(userID uuid.UUID) (*Participant, bool) {
	p, ok := a.Participants[userID]
	return p, ok
}

func (a *Aggregate) Category(categoryID uuid.UUID) (*Category, bool) {
	c, ok := a.Categories[categoryID]
	return c, ok
}

// CategoryByName finds a category case-insensitively
func (a *Aggregate) CategoryByName(name string) (*Category, bool) {
	for _, c := range a.Categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return nil, false
}

// ParticipantIDs returns every participant ordered by join time, then ID
func (a *Aggregate) ParticipantIDs() []uuid.UUID {
	list := make([]*Participant, 0, len(a.Participants))
	for _, p := range a.Participants {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].UserID.String() < list[j].UserID.String()
	})
	ids := make([]uuid.UUID, len(list))
	for i, p := range list {
		ids[i] = p.UserID
	}
	return ids
}

// CanApprove reports whether userID may approve expenses in category c
func (a *Aggregate) CanApprove(userID uuid.UUID, c *Category) bool {
	if a.Event.IsCreator(userID) {
		return true
	}
	return c != nil && c.IsApprover(userID)
}
