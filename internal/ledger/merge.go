package ledger

// MergeResult reports what a pool merge did.
type MergeResult struct {
	Text    string
	Added   int
	Updated int
	Total   int
}

// Merge combines an existing ledger pool with an incoming submission. Blocks
// sharing an order number are replaced by the incoming version; everything
// else in the pool is preserved. Merging the same submission twice is a
// no-op the second time (Added reports 0 and Text is unchanged).
//
// The sentinel block is carried through content-wise but never counted as an
// order in Added/Updated/Total.
func Merge(existingText, incomingText string) MergeResult {
	existing := Segment(existingText)
	incoming := Segment(incomingText)

	merged := NewBlockMap()
	for _, k := range existing.Keys() {
		text, _ := existing.Get(k)
		merged.Set(k, text)
	}

	added, updated := 0, 0
	for _, k := range incoming.Keys() {
		text, _ := incoming.Get(k)
		if k != SentinelKey {
			if merged.Has(k) {
				updated++
			} else {
				added++
			}
		}
		merged.Set(k, text)
	}

	return MergeResult{
		Text:    merged.Join(),
		Added:   added,
		Updated: updated,
		Total:   merged.Count(),
	}
}
