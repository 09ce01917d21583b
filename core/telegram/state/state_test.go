package state

import (
	"context"
	"sync"
	"testing"
	"time"
)

type sample struct {
	Step string `json:"step"`
	Note string `json:"note,omitempty"`
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[sample]()

	if _, ok, err := s.Get(ctx, 1); ok || err != nil {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := s.Put(ctx, 1, sample{Step: "a"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(ctx, 1)
	if err != nil || !ok || got.Step != "a" {
		t.Fatalf("get = %+v ok=%v err=%v", got, ok, err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestKeyedMutexSerializesSameUser(t *testing.T) {
	k := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(42)
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("same-user critical sections overlapped: %d", maxSeen)
	}
	if k.size() != 0 {
		t.Fatalf("entries leaked: %d", k.size())
	}
}

func TestKeyedMutexDifferentUsersIndependent(t *testing.T) {
	k := NewKeyedMutex()
	unlockA := k.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock(2)
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for user 2 blocked behind user 1")
	}
	unlockA()
	unlockA()
	if k.size() != 0 {
		t.Fatalf("entries leaked: %d", k.size())
	}
}
