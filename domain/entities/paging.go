package entities

// windowAfter trims a forward page fetched with limit+1 rows and
// computes the boundary FQNs for the paging envelope. hadAfter is true
// when the caller supplied an after cursor, meaning this is not the
// first page and a before cursor must point back at it.
func windowAfter(page []*Entity, limit int, hadAfter bool) (trimmed []*Entity, beforeFQN, afterFQN *string) {
	if len(page) == 0 {
		return page, nil, nil
	}
	if hadAfter {
		beforeFQN = &page[0].FullyQualifiedName
	}
	if len(page) > limit {
		page = page[:limit]
		afterFQN = &page[limit-1].FullyQualifiedName
	}
	return page, beforeFQN, afterFQN
}

// windowBefore trims a backward page. The input is already re-sorted
// ascending; an extra leading row means earlier pages still exist and
// is dropped. hadBefore is true when the caller supplied a before
// cursor, meaning the page scrolled back from lies ahead and an after
// cursor must point forward at it. A nil cursor asked for the last
// page, which has nothing after it.
func windowBefore(page []*Entity, limit int, hadBefore bool) (trimmed []*Entity, beforeFQN, afterFQN *string) {
	if len(page) == 0 {
		return page, nil, nil
	}
	if len(page) > limit {
		page = page[1:]
		beforeFQN = &page[0].FullyQualifiedName
	}
	if hadBefore {
		afterFQN = &page[len(page)-1].FullyQualifiedName
	}
	return page, beforeFQN, afterFQN
}
