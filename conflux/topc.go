package conflux

import (
	"container/heap"

	"gridlock/person"
	"gridlock/roadnetwork"
)

// LinkView is one link's already-sorted (front = closest to the
// intersection) person deque, the input shape TopCMerge expects — kept
// separate from Conflux so the merge is testable on its own (spec §4.F
// "testable independent of any Conflux").
type LinkView struct {
	Link    roadnetwork.LinkID
	Persons []*person.Person
}

// TopCMerge merges the K per-link deques in LinkView by progress toward the
// intersection, draining at most capacity persons in true global order via
// a bounded K-way heap merge (spec §4.F "getAllPersonsUsingTopCMerge").
// Beyond capacity, relative order across links no longer matters, so the
// untaken remainder of each link is returned as-is in tails, keyed by link
// id and kept in that link's original relative order. No order across links
// is defined for the tails.
func TopCMerge(links []LinkView, capacity int) (head []*person.Person, tails map[roadnetwork.LinkID][]*person.Person) {
	h := &mergeHeap{}
	heap.Init(h)
	for li, lv := range links {
		if len(lv.Persons) > 0 {
			heap.Push(h, mergeItem{link: li, idx: 0, progress: lv.Persons[0].ProgressCM()})
		}
	}

	popped := make([]int, len(links))
	for len(head) < capacity && h.Len() > 0 {
		top := heap.Pop(h).(mergeItem)
		lv := links[top.link]
		head = append(head, lv.Persons[top.idx])
		popped[top.link]++
		if next := top.idx + 1; next < len(lv.Persons) {
			heap.Push(h, mergeItem{link: top.link, idx: next, progress: lv.Persons[next].ProgressCM()})
		}
	}

	// Whatever remains un-popped per link (either never reached, or past
	// the heap's current frontier) becomes that link's tail, in original
	// (already-sorted) relative order.
	tails = make(map[roadnetwork.LinkID][]*person.Person, len(links))
	for li, lv := range links {
		if n := popped[li]; n < len(lv.Persons) {
			tails[lv.Link] = lv.Persons[n:]
		}
	}
	return head, tails
}

type mergeItem struct {
	link     int
	idx      int
	progress int64
}

// mergeHeap is a max-heap by progress: the person closest to the
// intersection (the largest ProgressCM within its segment) is drained
// first, matching the teacher's general comfort with container/heap for
// ordering problems (mirrored in entity.PendingQueue's min-heap).
type mergeHeap []mergeItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].progress > h[j].progress }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
