package storage

import (
	"sort"
	"strings"
	"time"
)

// Compare orders two field values. Numbers compare numerically whatever their
// Go type, strings lexically and times chronologically. Values of different
// kinds compare by kind so the order stays total.
func Compare(a, b interface{}) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	ka, kb := kind(a), kind(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

func kind(v interface{}) int {
	if _, ok := toFloat(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case time.Time:
		return 2
	case bool:
		return 3
	}
	return 4
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Apply sorts snaps in place by the query's field and cuts them to its limit.
// Documents missing the field sort last in either direction; ties fall back to
// the document id, ascending.
func Apply(snaps []Snapshot, q Query) []Snapshot {
	sort.SliceStable(snaps, func(i, j int) bool {
		vi, iok := snaps[i].Data[q.OrderBy]
		vj, jok := snaps[j].Data[q.OrderBy]
		if q.OrderBy != "" {
			if iok != jok {
				return iok
			}
			if iok {
				c := Compare(vi, vj)
				if q.Descending {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
		}
		return snaps[i].ID < snaps[j].ID
	})
	if q.Limit > 0 && len(snaps) > q.Limit {
		snaps = snaps[:q.Limit]
	}
	return snaps
}
