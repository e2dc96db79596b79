package concurrent

import (
	"sync/atomic"
	"testing"
)

func TestMap_PreservesOrder(t *testing.T) {
	in := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	out := Map(in, 4, func(v int) int { return v * 10 })

	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i, v := range in {
		if out[i] != v*10 {
			t.Errorf("out[%d] = %d, want %d", i, out[i], v*10)
		}
	}
}

func TestMap_VisitsEveryItem(t *testing.T) {
	var calls atomic.Int64
	in := make([]int, 100)
	Map(in, 8, func(int) struct{} {
		calls.Add(1)
		return struct{}{}
	})

	if got := calls.Load(); got != 100 {
		t.Errorf("fn ran %d times, want 100", got)
	}
}

func TestMap_SingleWorker(t *testing.T) {
	out := Map([]string{"a", "b", "c"}, 1, func(s string) string { return s + s })
	want := []string{"aa", "bb", "cc"}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
}

func TestMap_Empty(t *testing.T) {
	if out := Map(nil, 4, func(v int) int { return v }); out != nil {
		t.Errorf("Map(nil) = %v, want nil", out)
	}
}

func TestMap_DefaultWorkers(t *testing.T) {
	out := Map([]int{1, 2, 3}, 0, func(v int) int { return v + 1 })
	if out[0] != 2 || out[1] != 3 || out[2] != 4 {
		t.Errorf("out = %v", out)
	}
}
