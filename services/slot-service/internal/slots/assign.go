package slots

import (
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Assign picks the staff user for a slot starting at start. free holds the ids of users free
// for the slot. Under AssignChosen only chosen may be returned. Under AssignRandom the pick is
// a hash of the start instant over the ids in sorted order, so the outcome does not depend on
// the order of free.
func Assign(start time.Time, free []string, policy AssignPolicy, chosen string) (string, bool) {
	if len(free) == 0 {
		return "", false
	}
	if policy == AssignChosen {
		for _, id := range free {
			if id == chosen {
				return id, true
			}
		}
		return "", false
	}

	ids := append([]string(nil), free...)
	sort.Strings(ids)
	h := xxhash.Sum64String(start.UTC().Format(time.RFC3339))
	return ids[h%uint64(len(ids))], true
}
