package device

import (
	"errors"
	"math/rand"
	"slices"
	"sync"
	"testing"
)

type testInstance struct {
	id    InstanceID
	label string
}

func buildTest(label string) func(InstanceID) (*testInstance, error) {
	return func(iid InstanceID) (*testInstance, error) {
		return &testInstance{id: iid, label: label}, nil
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	changes := 0
	r := NewRegistry[*testInstance](func() { changes++ })

	iid, err := r.Add(3, buildTest("three"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if iid != 3 {
		t.Errorf("Add() id = %d, want 3", iid)
	}
	if changes != 1 {
		t.Errorf("change callbacks = %d, want 1", changes)
	}

	inst, ok := r.Get(3)
	if !ok {
		t.Fatal("Get(3) not found")
	}
	if inst.label != "three" || inst.id != 3 {
		t.Errorf("Get(3) = %+v", inst)
	}
}

func TestRegistry_AddDuplicate(t *testing.T) {
	changes := 0
	r := NewRegistry[*testInstance](func() { changes++ })

	if _, err := r.Add(0, buildTest("a")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	_, err := r.Add(0, buildTest("b"))
	if !errors.Is(err, ErrDuplicateInstance) {
		t.Fatalf("Add() duplicate error = %v, want ErrDuplicateInstance", err)
	}
	if changes != 1 {
		t.Errorf("change callbacks = %d, want 1 (duplicate must not notify)", changes)
	}

	inst, _ := r.Get(0)
	if inst.label != "a" {
		t.Errorf("duplicate add replaced instance: label = %q", inst.label)
	}
}

func TestRegistry_AddAutoAssign(t *testing.T) {
	r := NewRegistry[*testInstance](nil)

	for _, iid := range []InstanceID{0, 1, 3} {
		if _, err := r.Add(iid, buildTest("x")); err != nil {
			t.Fatalf("Add(%d) error = %v", iid, err)
		}
	}

	iid, err := r.Add(InstanceIDInvalid, buildTest("auto"))
	if err != nil {
		t.Fatalf("Add(invalid) error = %v", err)
	}
	if iid != 2 {
		t.Errorf("auto-assigned id = %d, want 2", iid)
	}
}

func TestRegistry_AddBuildError(t *testing.T) {
	changes := 0
	r := NewRegistry[*testInstance](func() { changes++ })
	boom := errors.New("boom")

	_, err := r.Add(1, func(InstanceID) (*testInstance, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Add() error = %v, want boom", err)
	}
	if r.Len() != 0 || changes != 0 {
		t.Errorf("failed build left len=%d changes=%d", r.Len(), changes)
	}
}

func TestRegistry_Remove(t *testing.T) {
	changes := 0
	r := NewRegistry[*testInstance](func() { changes++ })

	if _, err := r.Add(5, buildTest("five")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	inst, err := r.Remove(5)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if inst.label != "five" {
		t.Errorf("Remove() returned %+v", inst)
	}
	if changes != 2 {
		t.Errorf("change callbacks = %d, want 2", changes)
	}

	if _, err := r.Remove(5); !errors.Is(err, ErrUnknownInstance) {
		t.Errorf("second Remove() error = %v, want ErrUnknownInstance", err)
	}
	if changes != 2 {
		t.Errorf("failed remove notified: changes = %d", changes)
	}

	// A removed id may be reused.
	if _, err := r.Add(5, buildTest("again")); err != nil {
		t.Errorf("Add() after remove error = %v", err)
	}
}

func TestRegistry_IDsAscendingUnderRandomOps(t *testing.T) {
	r := NewRegistry[*testInstance](nil)
	rng := rand.New(rand.NewSource(42))
	live := map[InstanceID]bool{}

	for range 2000 {
		iid := InstanceID(rng.Intn(32))
		if rng.Intn(2) == 0 {
			_, err := r.Add(iid, buildTest(""))
			if live[iid] {
				if !errors.Is(err, ErrDuplicateInstance) {
					t.Fatalf("Add(%d) on live id error = %v", iid, err)
				}
			} else if err != nil {
				t.Fatalf("Add(%d) error = %v", iid, err)
			}
			live[iid] = true
		} else {
			_, err := r.Remove(iid)
			if !live[iid] {
				if !errors.Is(err, ErrUnknownInstance) {
					t.Fatalf("Remove(%d) on dead id error = %v", iid, err)
				}
			} else if err != nil {
				t.Fatalf("Remove(%d) error = %v", iid, err)
			}
			delete(live, iid)
		}

		ids := r.IDs()
		if len(ids) != len(live) {
			t.Fatalf("IDs() len = %d, want %d", len(ids), len(live))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i-1] >= ids[i] {
				t.Fatalf("IDs() not strictly ascending: %v", ids)
			}
		}
	}
}

func TestRegistry_ConcurrentAdd(t *testing.T) {
	r := NewRegistry[*testInstance](nil)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Add(InstanceIDInvalid, buildTest("")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Add() error = %v", err)
	}

	ids := r.IDs()
	want := make([]InstanceID, 64)
	for i := range want {
		want[i] = InstanceID(i)
	}
	if !slices.Equal(ids, want) {
		t.Errorf("IDs() = %v, want 0..63", ids)
	}
}

func TestRegistry_EachAllowsMutation(t *testing.T) {
	r := NewRegistry[*testInstance](nil)
	for _, iid := range []InstanceID{2, 0, 1} {
		if _, err := r.Add(iid, buildTest("")); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	var seen []InstanceID
	r.Each(func(iid InstanceID, _ *testInstance) {
		seen = append(seen, iid)
		if _, err := r.Remove(iid); err != nil {
			t.Errorf("Remove(%d) inside Each error = %v", iid, err)
		}
	})

	if !slices.Equal(seen, []InstanceID{0, 1, 2}) {
		t.Errorf("Each order = %v, want [0 1 2]", seen)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after removing all", r.Len())
	}
}

func TestRegistry_CallbackMayReenter(t *testing.T) {
	var r *Registry[*testInstance]
	var observed []InstanceID
	r = NewRegistry[*testInstance](func() { observed = r.IDs() })

	if _, err := r.Add(7, buildTest("")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !slices.Equal(observed, []InstanceID{7}) {
		t.Errorf("callback saw %v, want [7]", observed)
	}
}
