package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestBounded_New(t *testing.T) {
	q := NewBounded[testItem](4)
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
	if q.Cap() != 4 {
		t.Errorf("expected capacity 4, got %d", q.Cap())
	}
}

func TestBounded_NewCoercesCapacity(t *testing.T) {
	for _, c := range []int{0, -3} {
		q := NewBounded[int](c)
		if q.Cap() != 1 {
			t.Errorf("capacity %d: expected 1, got %d", c, q.Cap())
		}
		q.Push(1, 2)
		if v, _ := q.Pop(); v != 2 {
			t.Errorf("capacity %d: expected newest item 2, got %d", c, v)
		}
	}
}

func TestBounded_Push(t *testing.T) {
	q := NewBounded[testItem](10)

	if n := q.Push(testItem{ID: 1, Name: "first"}); n != 0 {
		t.Errorf("expected no eviction, got %d", n)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestBounded_PopEmpty(t *testing.T) {
	q := NewBounded[testItem](3)

	result, ok := q.Pop()
	if ok {
		t.Error("expected ok=false on empty queue")
	}
	if result.ID != 0 || result.Name != "" {
		t.Errorf("expected zero value, got %+v", result)
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestBounded_PopFIFO(t *testing.T) {
	q := NewBounded[testItem](3)
	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})

	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v (ok=%v)", first, ok)
	}
	second, ok := q.Pop()
	if !ok || second.ID != 2 {
		t.Errorf("expected {2, second}, got %+v (ok=%v)", second, ok)
	}
	if !q.Empty() {
		t.Error("expected empty queue after popping everything")
	}
}

func TestBounded_EvictsOldest(t *testing.T) {
	const k = 5
	q := NewBounded[int](k)

	for i := 1; i <= k+1; i++ {
		q.Push(i)
		if q.Len() > k {
			t.Fatalf("length %d exceeds capacity %d after push %d", q.Len(), k, i)
		}
	}

	head, ok := q.Pop()
	if !ok {
		t.Fatal("expected an item")
	}
	if head != 2 {
		t.Errorf("expected the 2nd pushed item, got %d", head)
	}
	if q.Evicted() != 1 {
		t.Errorf("expected 1 eviction, got %d", q.Evicted())
	}
}

func TestBounded_PushManyAtOnce(t *testing.T) {
	q := NewBounded[int](3)

	evicted := q.Push(1, 2, 3, 4, 5, 6, 7)
	if evicted != 4 {
		t.Errorf("expected 4 evicted, got %d", evicted)
	}

	got := q.Drain()
	want := []int{5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestBounded_RequeueGoesAheadOfNewerItems(t *testing.T) {
	q := NewBounded[int](5)
	q.Push(1, 2)
	taken := q.Drain()
	q.Push(3)

	if n := q.Requeue(taken...); n != 0 {
		t.Errorf("expected no eviction, got %d", n)
	}
	got := q.Drain()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestBounded_RequeueEvictsOldestFirst(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2)
	taken := q.Drain()
	q.Push(3, 4)

	if n := q.Requeue(taken...); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	got := q.Drain()
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if q.Evicted() != 1 {
		t.Errorf("expected 1 eviction counted, got %d", q.Evicted())
	}
}

func TestBounded_Clear(t *testing.T) {
	q := NewBounded[testItem](5)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after clear")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestBounded_Drain(t *testing.T) {
	q := NewBounded[testItem](5)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	result := q.Drain()

	if len(result) != 3 {
		t.Errorf("expected 3 items, got %d", len(result))
	}
	if result[0].ID != 1 || result[1].ID != 2 || result[2].ID != 3 {
		t.Errorf("unexpected items: %+v", result)
	}
	if !q.Empty() {
		t.Error("expected empty queue after Drain")
	}

	// the queue is still usable afterwards
	q.Push(testItem{ID: 4})
	if v, ok := q.Pop(); !ok || v.ID != 4 {
		t.Errorf("expected {4}, got %+v", v)
	}
}

func TestBounded_ConcurrentPushNeverExceedsCapacity(t *testing.T) {
	const k = 24
	q := NewBounded[int](k)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(id)
			if n := q.Len(); n > k {
				t.Errorf("length %d exceeds capacity %d", n, k)
			}
		}(i)
	}
	wg.Wait()

	if q.Len() != k {
		t.Errorf("expected %d items, got %d", k, q.Len())
	}
	if q.Evicted() != 100-k {
		t.Errorf("expected %d evictions, got %d", 100-k, q.Evicted())
	}
}

func TestBounded_ConcurrentPopDeliversOnce(t *testing.T) {
	q := NewBounded[int](100)
	for i := 0; i < 100; i++ {
		q.Push(i)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int]int)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 100 {
		t.Errorf("expected 100 distinct items, got %d", len(seen))
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("item %d delivered %d times", v, n)
		}
	}
}
