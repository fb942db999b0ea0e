package models

import (
	"cmp"
	"iter"
	"slices"
	"sync"
)

// sortKey is one (keyExtractor, comparator) step of a sort strategy, folded into a compare func.
type sortKey func(a, b *ReviewItem) int

// sortStrategy is the ranked key list of one display mode. Ties fall through to the next key.
type sortStrategy []sortKey

func byEntryIndex(a, b *ReviewItem) int {
	return cmp.Compare(a.EntryIndex, b.EntryIndex)
}

func byTransactionId(a, b *ReviewItem) int {
	return cmp.Compare(a.TransactionId, b.TransactionId)
}

// callers guarantee both positions are set
func byPosition(a, b *ReviewItem) int {
	return cmp.Compare(*a.Position, *b.Position)
}

func byStatusRank(a, b *ReviewItem) int {
	return cmp.Compare(a.Status.rank(), b.Status.rank())
}

// most recent first
func byDateDesc(a, b *ReviewItem) int {
	return b.TransactionDate.Compare(a.TransactionDate)
}

func byAbsAmountDesc(a, b *ReviewItem) int {
	return b.Amount.Abs().Cmp(a.Amount.Abs())
}

var strategies = map[SortMode]sortStrategy{
	SortModeCustom: {byPosition, byEntryIndex, byTransactionId},
	SortModeEntry:  {byEntryIndex, byTransactionId},
	SortModeStatus: {byStatusRank, byDateDesc, byEntryIndex, byTransactionId},
	SortModeAmount: {byAbsAmountDesc, byEntryIndex, byTransactionId},
}

func (s sortStrategy) compare(a, b ReviewItem) int {
	for _, key := range s {
		if c := key(&a, &b); c != 0 {
			return c
		}
	}
	return 0
}

func allPositioned(items []ReviewItem) bool {
	for i := range items {
		if items[i].Position == nil {
			return false
		}
	}
	return true
}

// ResolveSortMode picks the strategy that actually applies to the visible items: the custom
// order is used only when every one of them has a position, otherwise the whole set falls back
// to entry order.
func ResolveSortMode(mode SortMode, items []ReviewItem) SortMode {
	switch mode {
	case SortModeAuto, SortModeCustom:
		if len(items) > 0 && allPositioned(items) {
			return SortModeCustom
		}
		return SortModeEntry
	case SortModeEntry, SortModeStatus, SortModeAmount:
		return mode
	default:
		return SortModeEntry
	}
}

// SortReviewItems returns a lazy sequence over items in display order. The input slice is not
// modified. The sort runs on first iteration and the sequence can be ranged over again.
func SortReviewItems(items []ReviewItem, mode SortMode) iter.Seq[ReviewItem] {
	var (
		once   sync.Once
		sorted []ReviewItem
	)
	return func(yield func(ReviewItem) bool) {
		once.Do(func() {
			sorted = slices.Clone(items)
			strategy := strategies[ResolveSortMode(mode, sorted)]
			slices.SortStableFunc(sorted, strategy.compare)
		})
		for _, item := range sorted {
			if !yield(item) {
				return
			}
		}
	}
}

// FilterReviewItems keeps the items visible under filter, preserving their order.
func FilterReviewItems(items []ReviewItem, filter ReviewFilter) []ReviewItem {
	visible := make([]ReviewItem, 0, len(items))
	for _, item := range items {
		if item.Matches(filter) {
			visible = append(visible, item)
		}
	}
	return visible
}
