package entity

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// SortBy sorts list in place by key, keeping the original order of equal
// elements.
func SortBy[F any, K constraints.Ordered](list []Entity[F], key func(Entity[F]) K, desc bool) {
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return key(list[i]) > key(list[j])
		}
		return key(list[i]) < key(list[j])
	})
}

// ByUpdatedAt is a SortBy key. Combined with desc it yields the most
// recently changed records first.
func ByUpdatedAt[F any](e Entity[F]) int64 {
	return e.UpdatedAt.UnixMilli()
}

// ByCreatedAt is a SortBy key.
func ByCreatedAt[F any](e Entity[F]) int64 {
	return e.CreatedAt.UnixMilli()
}
