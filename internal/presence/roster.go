package presence

import (
	"sort"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
)

// Roster turns a snapshot of the users collection into presence entries,
// online users first, then by username. Records without a username are
// leftovers of deleted accounts and are skipped.
func Roster(snap store.Snapshot) ([]model.PresenceEntry, error) {
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	entries := make([]model.PresenceEntry, 0, len(children))
	for _, child := range children {
		var u model.User
		if err := child.Decode(&u); err != nil {
			return nil, err
		}
		if u.Username == "" {
			continue
		}
		entries = append(entries, model.PresenceEntry{
			UserID:     child.Key(),
			Username:   u.Username,
			Name:       u.Name,
			IsOnline:   u.IsOnline,
			LastActive: u.LastActive,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsOnline != entries[j].IsOnline {
			return entries[i].IsOnline
		}
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}
