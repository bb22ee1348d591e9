package cache

import "sort"

// selectVictims picks entries to evict from a level that is over its
// capacity, applying the policy's ordering. It never touches entries
// still referenced by the caller's live working set; eviction is purely
// metadata-driven. entries is mutated (sorted) in place and the prefix
// to evict is returned.
//
// TTL removes only already-expired entries (the caller is expected to
// have filtered those separately via Expired); if a TTL level is still
// over capacity after expiry removal, it falls back to FIFO ordering, per
// §4.1.
func selectVictims(entries []*Entry, policy Policy, overBy int64) []*Entry {
	if overBy <= 0 || len(entries) == 0 {
		return nil
	}

	switch policy {
	case PolicyLRU:
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].LastAccessed.Before(entries[j].LastAccessed)
		})
	case PolicyLFU:
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].AccessCount != entries[j].AccessCount {
				return entries[i].AccessCount < entries[j].AccessCount
			}
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
	case PolicyFIFO, PolicyTTL:
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
	default:
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
	}

	var victims []*Entry
	var freed int64
	for _, e := range entries {
		if freed >= overBy {
			break
		}
		victims = append(victims, e)
		freed += int64(len(e.Value))
	}
	return victims
}

// totalSize sums the byte size of a set of entries.
func totalSize(entries []*Entry) int64 {
	var total int64
	for _, e := range entries {
		total += int64(len(e.Value))
	}
	return total
}
