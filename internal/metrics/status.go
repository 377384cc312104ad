package metrics

import "sort"

// StatusBucket is the failure count for one class/code pair, such as http/503 or
// transport/"Op Error (net)".
type StatusBucket struct {
	Class string
	Code  string
	Count int
}

// FlattenStatusBuckets converts a nested class->code map into StatusBucket rows,
// sorted by descending count, then by class and code.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for class, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Class: class, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Class == rows[j].Class {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Class < rows[j].Class
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
