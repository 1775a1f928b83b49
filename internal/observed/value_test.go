package observed

import (
	"sync"
	"testing"
)

func TestValue_GetSet(t *testing.T) {
	c := New(21.5)
	if got := c.Get(); got != 21.5 {
		t.Fatalf("Get() = %v, want 21.5", got)
	}
	c.Set(-3)
	if got := c.Get(); got != -3 {
		t.Errorf("Get() after Set = %v, want -3", got)
	}
}

func TestValue_ZeroValue(t *testing.T) {
	var c Value[bool]
	if c.Get() {
		t.Error("zero Value[bool] should read false")
	}
}

func TestValue_Swap(t *testing.T) {
	c := New(false)

	old, changed := c.Swap(true)
	if old || !changed {
		t.Errorf("Swap(true) = (%v, %v), want (false, true)", old, changed)
	}

	old, changed = c.Swap(true)
	if !old || changed {
		t.Errorf("Swap(true) again = (%v, %v), want (true, false)", old, changed)
	}
}

// Writers store vectors whose components are all equal; a reader must never
// observe a vector with mixed components.
func TestValue_Vector3NoTornReads(t *testing.T) {
	c := New(Vector3{})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			f := float64(i)
			c.Set(Vector3{X: f, Y: f, Z: f})
		}
	}()

	for range 10000 {
		v := c.Get()
		if v.X != v.Y || v.Y != v.Z {
			close(stop)
			wg.Wait()
			t.Fatalf("torn read: %+v", v)
		}
	}
	close(stop)
	wg.Wait()
}

func TestSourceFunc(t *testing.T) {
	var s Source[float64] = SourceFunc[float64](func() float64 { return 4.2 })
	if got := s.Get(); got != 4.2 {
		t.Errorf("Get() = %v, want 4.2", got)
	}
}
