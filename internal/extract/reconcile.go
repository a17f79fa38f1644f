package extract

import "pharmadoc/internal/doctree"

// Reconcile merges candidate extractions into a single record without any
// further oracle call. The merge is deterministic: keys appear in the order
// they were first seen across candidates, list fields are concatenated and
// deduplicated, scalar fields take the most frequent non-empty value with
// ties resolved in favor of the first value encountered, and nested mappings
// are merged one level deep the same way.
func Reconcile(candidates []*doctree.Mapping) *doctree.Mapping {
	switch len(candidates) {
	case 0:
		return doctree.NewMapping()
	case 1:
		return candidates[0]
	}

	merged := doctree.NewMapping()
	for _, key := range unionKeys(candidates) {
		values := presentValues(candidates, key)
		if len(values) == 0 {
			continue
		}
		switch values[0].(type) {
		case *doctree.Sequence:
			merged.Set(key, mergeSequences(values))
		case *doctree.Mapping:
			merged.Set(key, mergeMappings(values))
		default:
			merged.Set(key, mostFrequent(values))
		}
	}
	return merged
}

// unionKeys returns every key from every candidate, in first-seen order.
func unionKeys(candidates []*doctree.Mapping) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		for _, key := range c.Keys() {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// presentValues collects the values each candidate holds for key, skipping
// absent keys, nulls and empty strings. Empty lists and mappings are kept:
// "no batches found" is a statement, not a gap.
func presentValues(candidates []*doctree.Mapping, key string) []doctree.Node {
	var values []doctree.Node
	for _, c := range candidates {
		v, ok := c.Get(key)
		if !ok {
			continue
		}
		if s, isScalar := v.(doctree.Scalar); isScalar && (s.Value == nil || s.String() == "") {
			continue
		}
		values = append(values, v)
	}
	return values
}

func mergeSequences(values []doctree.Node) *doctree.Sequence {
	merged := &doctree.Sequence{}
	seen := make(map[string]bool)
	for _, v := range values {
		seq, ok := v.(*doctree.Sequence)
		if !ok {
			continue
		}
		for _, item := range seq.Items {
			sig := doctree.Canonical(item)
			if seen[sig] {
				continue
			}
			seen[sig] = true
			merged.Append(item)
		}
	}
	return merged
}

func mergeMappings(values []doctree.Node) *doctree.Mapping {
	var maps []*doctree.Mapping
	for _, v := range values {
		if m, ok := v.(*doctree.Mapping); ok {
			maps = append(maps, m)
		}
	}
	merged := doctree.NewMapping()
	for _, key := range unionKeys(maps) {
		subValues := presentValues(maps, key)
		if len(subValues) == 0 {
			continue
		}
		merged.Set(key, mostFrequent(subValues))
	}
	return merged
}

// mostFrequent picks the value occurring most often, by canonical form. Among
// equally frequent values the one encountered first wins, which keeps the
// result independent of map iteration order.
func mostFrequent(values []doctree.Node) doctree.Node {
	counts := make(map[string]int)
	var order []string
	bySig := make(map[string]doctree.Node)
	for _, v := range values {
		sig := doctree.Canonical(v)
		if counts[sig] == 0 {
			order = append(order, sig)
			bySig[sig] = v
		}
		counts[sig]++
	}
	best := order[0]
	for _, sig := range order[1:] {
		if counts[sig] > counts[best] {
			best = sig
		}
	}
	return bySig[best]
}
