// internal/poller/blocks.go
package poller

import (
	"sort"

	"github.com/tamzrod/modbus-client/internal/session"
)

// GroupBlocks merges tags into contiguous reads per table. Two tags share a
// block when the gap between them is at most maxGap registers and the
// block stays within a single read.
func GroupBlocks(tags []Tag, maxGap int) []ReadBlock {
	idx := make([]int, len(tags))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := tags[idx[a]], tags[idx[b]]
		if ta.Table != tb.Table {
			return ta.Table < tb.Table
		}
		return ta.Address < tb.Address
	})

	var (
		blocks []ReadBlock
		cur    *ReadBlock
		curEnd int
	)
	for _, i := range idx {
		t := tags[i]
		if cur != nil && t.Table == cur.Table {
			gap := int(t.Address) - curEnd
			end := curEnd
			if t.end() > end {
				end = t.end()
			}
			if gap <= maxGap && end-int(cur.Address) <= session.MaxReadQuantity {
				cur.Tags = append(cur.Tags, i)
				curEnd = end
				cur.Quantity = uint16(curEnd - int(cur.Address))
				continue
			}
		}
		blocks = append(blocks, ReadBlock{
			Table:    t.Table,
			Address:  t.Address,
			Quantity: uint16(t.Words),
			Tags:     []int{i},
		})
		cur = &blocks[len(blocks)-1]
		curEnd = t.end()
	}
	return blocks
}
