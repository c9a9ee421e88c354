package engine

import (
	"container/heap"
	"sort"
)

// expiryIndex 以時間刻度分桶索引拍賣的到期時間，
// 讓每次 Tick 只需掃描已到期的桶，而不是全部拍賣。
// 任一時刻每場拍賣至多出現在一個桶中。
type expiryIndex struct {
	buckets map[Tick]map[AuctionID]struct{}
	heap    tickHeap // 桶時間的最小堆，空桶採延遲刪除
}

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{
		buckets: make(map[Tick]map[AuctionID]struct{}),
	}
}

// insert 將拍賣加入指定時間的桶
func (x *expiryIndex) insert(at Tick, id AuctionID) {
	bucket, ok := x.buckets[at]
	if !ok {
		bucket = make(map[AuctionID]struct{})
		x.buckets[at] = bucket
		heap.Push(&x.heap, at)
	}
	bucket[id] = struct{}{}
}

// remove 將拍賣從指定時間的桶移除。
// 清空的桶留在堆中，待 drain 觸及時再丟棄。
func (x *expiryIndex) remove(at Tick, id AuctionID) {
	bucket, ok := x.buckets[at]
	if !ok {
		return
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(x.buckets, at)
	}
}

// reschedule 將拍賣從舊桶搬到新桶
func (x *expiryIndex) reschedule(id AuctionID, from, to Tick) {
	x.remove(from, id)
	x.insert(to, id)
}

// drain 取出所有到期時間 <= now 的拍賣並移除對應的桶。
// 回傳結果依 (時間, 編號) 排序，確保結算順序是確定性的。
func (x *expiryIndex) drain(now Tick) []AuctionID {
	var drained []AuctionID
	for x.heap.Len() > 0 && x.heap[0] <= now {
		at := heap.Pop(&x.heap).(Tick)
		bucket, ok := x.buckets[at]
		if !ok {
			// 已被 remove 清空的延遲刪除桶
			continue
		}
		ids := make([]AuctionID, 0, len(bucket))
		for id := range bucket {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		drained = append(drained, ids...)
		delete(x.buckets, at)
	}
	return drained
}

// tickHeap 實作 container/heap 的最小堆
type tickHeap []Tick

func (h tickHeap) Len() int           { return len(h) }
func (h tickHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h tickHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *tickHeap) Push(v any)        { *h = append(*h, v.(Tick)) }
func (h *tickHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
