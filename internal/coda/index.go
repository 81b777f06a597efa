package coda

import (
	"fmt"
	"sort"
	"strconv"
)

// SplitInfos is the info list loaded for one split.
type SplitInfos struct {
	// Split is the data split the infos were built from; it selects the
	// frames' top-level directory.
	Split string
	Infos []InfoRecord
}

// SortedIndex is the cross-split view used with sorted image sets: every
// split's infos concatenated, the order that visits them by ascending
// numeric frame id and each frame's top-level directory.
type SortedIndex struct {
	Infos   []InfoRecord
	Order   []int
	Subdirs map[string]string
}

// BuildSortedIndex concatenates splits in the given order and sorts the
// result by numeric lidar index. Ties keep concatenation order.
func BuildSortedIndex(splits []SplitInfos) (*SortedIndex, error) {
	idx := &SortedIndex{Subdirs: make(map[string]string)}
	var keys []int64
	for _, s := range splits {
		for _, info := range s.Infos {
			id := info.FrameID()
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("sorted index: frame id %q in split %s is not numeric: %w", id, s.Split, err)
			}
			keys = append(keys, n)
			idx.Infos = append(idx.Infos, info)
			idx.Subdirs[id] = SplitDir(s.Split)
		}
		diagf("sorted index: added %d infos for split %s", len(s.Infos), s.Split)
	}

	idx.Order = make([]int, len(keys))
	for i := range idx.Order {
		idx.Order[i] = i
	}
	sort.SliceStable(idx.Order, func(a, b int) bool {
		return keys[idx.Order[a]] < keys[idx.Order[b]]
	})
	return idx, nil
}

// Len returns the number of indexed records.
func (s *SortedIndex) Len() int { return len(s.Order) }

// At returns the i-th record in sorted order.
func (s *SortedIndex) At(i int) *InfoRecord { return &s.Infos[s.Order[i]] }
