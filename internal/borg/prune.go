package borg

import (
	"fmt"
	"sort"
	"time"
)

// TimestampLayout is the archive-suffix timestamp format.
const TimestampLayout = "20060102_150405"

type tier struct {
	name    string
	seconds int64
}

// Tier periods are fixed synthetic spans, not calendar months/years.
var tiers = []tier{
	{"hour", 3600},
	{"day", 86400},
	{"week", 7 * 86400},
	{"month", 30 * 86400},
	{"year", 365 * 86400},
}

// KeepCounts holds how many archives each tier retains.
type KeepCounts struct {
	Hourly  int
	Daily   int
	Weekly  int
	Monthly int
	Yearly  int
}

func DefaultKeepCounts() KeepCounts {
	return KeepCounts{Hourly: 2, Daily: 2, Weekly: 2, Monthly: 2, Yearly: 2}
}

func (k KeepCounts) forTier(name string) int {
	switch name {
	case "hour":
		return k.Hourly
	case "day":
		return k.Daily
	case "week":
		return k.Weekly
	case "month":
		return k.Monthly
	case "year":
		return k.Yearly
	}
	return 0
}

// Keep is one retained timestamp and the tier slot it occupies.
type Keep struct {
	Timestamp string
	Label     string
}

// TimestampsToKeep selects which archive timestamps survive a prune.
//
// Timestamps are bucketed per tier by integer division of their offset
// from the oldest timestamp. Buckets are visited newest-first; a bucket
// whose oldest member is already held by a finer tier is skipped without
// consuming a slot, otherwise that member is labeled tier-N until the
// tier's keep count is exhausted. The result is ordered newest-first.
func TimestampsToKeep(timestamps []string, keep KeepCounts) ([]Keep, error) {
	if len(timestamps) == 0 {
		return nil, nil
	}

	epochs := make(map[string]int64, len(timestamps))
	anchor := int64(0)
	for i, ts := range timestamps {
		t, err := time.ParseInLocation(TimestampLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("borg: bad timestamp %q: %w", ts, err)
		}
		sec := t.Unix()
		epochs[ts] = sec
		if i == 0 || sec < anchor {
			anchor = sec
		}
	}

	claimed := make(map[string]string)
	for _, tr := range tiers {
		limit := keep.forTier(tr.name)
		if limit <= 0 {
			continue
		}

		buckets := make(map[int64]string)
		for ts, sec := range epochs {
			idx := (sec - anchor) / tr.seconds
			old, ok := buckets[idx]
			if !ok || epochs[ts] < epochs[old] {
				buckets[idx] = ts
			}
		}
		indices := make([]int64, 0, len(buckets))
		for idx := range buckets {
			indices = append(indices, idx)
		}
		sort.Slice(indices, func(i, j int) bool { return indices[i] > indices[j] })

		rank := 0
		for _, idx := range indices {
			ts := buckets[idx]
			if _, held := claimed[ts]; held {
				continue
			}
			claimed[ts] = fmt.Sprintf("%s-%d", tr.name, rank)
			rank++
			if rank == limit {
				break
			}
		}
	}

	keeps := make([]Keep, 0, len(claimed))
	for ts, label := range claimed {
		keeps = append(keeps, Keep{Timestamp: ts, Label: label})
	}
	sort.Slice(keeps, func(i, j int) bool { return keeps[i].Timestamp > keeps[j].Timestamp })
	return keeps, nil
}
