package portfolio

// Reconcile merges the bulk and targeted discovery results. Bulk results come
// first, so a targeted result never replaces or duplicates a bulk one.
func Reconcile(bulk, targeted []Holding) []Holding {
	merged := make([]Holding, 0, len(bulk)+len(targeted))
	merged = append(merged, bulk...)
	merged = append(merged, targeted...)
	return DedupeByAsset(merged)
}

// DedupeByAsset keeps the first holding seen for each asset symbol.
func DedupeByAsset(hs []Holding) []Holding {
	seen := make(map[string]struct{}, len(hs))
	out := make([]Holding, 0, len(hs))
	for _, h := range hs {
		if _, ok := seen[h.Asset]; ok {
			continue
		}
		seen[h.Asset] = struct{}{}
		out = append(out, h)
	}
	return out
}

// MissingAssets returns the known assets absent from found, in known order and
// without repeats.
func MissingAssets(known []string, found []Holding) []string {
	present := make(map[string]struct{}, len(found))
	for _, h := range found {
		present[h.Asset] = struct{}{}
	}

	var missing []string
	for _, asset := range known {
		if _, ok := present[asset]; ok || asset == "" {
			continue
		}
		present[asset] = struct{}{}
		missing = append(missing, asset)
	}
	return missing
}
