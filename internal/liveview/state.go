package liveview

import (
	"sort"

	"friendmap/internal/changefeed"
	"friendmap/internal/models"
)

// State is one user's view of their friends: the mutual set, and the last
// known position of those friends who currently publish one. It is treated
// as immutable; ApplyEvent returns a new value when anything changes.
type State struct {
	friends   map[string]string
	locations map[string]models.FriendLocation
}

// NewState seeds a view from a resolved friend set and their current rows.
// self is never admitted, and rows for non-friends are dropped.
func NewState(self string, friends map[string]string, locs []models.FriendLocation) State {
	s := State{
		friends:   make(map[string]string, len(friends)),
		locations: make(map[string]models.FriendLocation, len(locs)),
	}
	for uid, name := range friends {
		if uid != self {
			s.friends[uid] = name
		}
	}
	for _, l := range locs {
		name, ok := s.friends[l.UID]
		if !ok {
			continue
		}
		if l.Name == "" {
			l.Name = name
		}
		s.locations[l.UID] = l
	}
	return s
}

// ApplyEvent folds one change-feed event into s.
//
// INSERT or UPDATE on live_locations merges the row when its owner is in the
// mutual set and ignores it otherwise. DELETE removes the owner's position
// unconditionally. Events for any other table leave s unchanged.
//
// Unlike a plain last-event-wins merge, a row whose UpdatedAt is older than
// the one already held is dropped. Rows are stamped by the server clock, so
// this only matters when a seed query and replayed events overlap; it keeps
// a friend's marker from jumping back to a superseded position.
func ApplyEvent(s State, ev changefeed.Event) State {
	if ev.Table != (models.LiveLocation{}).TableName() {
		return s
	}
	switch ev.Type {
	case changefeed.Insert, changefeed.Update:
		row, ok := ev.New.(*models.LiveLocation)
		if !ok || row == nil {
			return s
		}
		name, friend := s.friends[row.FirebaseUID]
		if !friend {
			return s
		}
		if cur, ok := s.locations[row.FirebaseUID]; ok && row.UpdatedAt.Before(cur.UpdatedAt) {
			return s
		}
		next := s.withLocations()
		next.locations[row.FirebaseUID] = models.FriendLocation{
			UID:       row.FirebaseUID,
			Name:      name,
			Latitude:  row.Latitude,
			Longitude: row.Longitude,
			UpdatedAt: row.UpdatedAt,
		}
		return next
	case changefeed.Delete:
		row, ok := ev.Old.(*models.LiveLocation)
		if !ok || row == nil {
			return s
		}
		if _, held := s.locations[row.FirebaseUID]; !held {
			return s
		}
		next := s.withLocations()
		delete(next.locations, row.FirebaseUID)
		return next
	}
	return s
}

// withLocations copies the location map; the friend set is shared.
func (s State) withLocations() State {
	locs := make(map[string]models.FriendLocation, len(s.locations)+1)
	for k, v := range s.locations {
		locs[k] = v
	}
	return State{friends: s.friends, locations: locs}
}

func (s State) IsFriend(uid string) bool {
	_, ok := s.friends[uid]
	return ok
}

func (s State) Location(uid string) (models.FriendLocation, bool) {
	l, ok := s.locations[uid]
	return l, ok
}

func (s State) Len() int { return len(s.locations) }

// List returns the visible friends ordered by name, then uid.
func (s State) List() []models.FriendLocation {
	out := make([]models.FriendLocation, 0, len(s.locations))
	for _, l := range s.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UID < out[j].UID
	})
	return out
}
