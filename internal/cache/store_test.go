package cache

import (
	"sync"
	"testing"

	"github.com/bassista/tasksync/internal/task"
)

func createTestTasks() []task.Task {
	return []task.Task{
		{ID: "1", Title: "first"},
		{ID: "2", Title: "second", Completed: true},
		{ID: "3", Title: "third"},
	}
}

func TestNewStore(t *testing.T) {
	store := NewStore()

	if store == nil {
		t.Fatal("expected store to be created")
	}
	if !store.IsDirty() {
		t.Error("expected a new store to be dirty")
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", store.Len())
	}
}

func TestStore_DirtyFlag(t *testing.T) {
	store := NewStore()

	store.Replace(nil)
	if store.IsDirty() {
		t.Error("expected store to not be dirty after Replace")
	}

	store.MarkDirty()
	if !store.IsDirty() {
		t.Error("expected store to be dirty after MarkDirty")
	}
}

func TestStore_Replace_PreservesOrder(t *testing.T) {
	store := NewStore()
	store.Replace(createTestTasks())

	snapshot := store.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(snapshot))
	}
	for i, id := range []string{"1", "2", "3"} {
		if snapshot[i].ID != id {
			t.Errorf("position %d: expected id %s, got %s", i, id, snapshot[i].ID)
		}
	}
}

func TestStore_Snapshot_IsCopy(t *testing.T) {
	store := NewStore()
	store.Replace(createTestTasks())

	snapshot := store.Snapshot()
	snapshot[0].Title = "modified"

	got, _ := store.Get("1")
	if got.Title != "first" {
		t.Error("modifying snapshot should not affect store")
	}
}

func TestStore_Put(t *testing.T) {
	store := NewStore()
	store.Replace(createTestTasks())

	store.Put(task.Task{ID: "1", Title: "updated"})
	store.Put(task.Task{ID: "4", Title: "fourth"})

	snapshot := store.Snapshot()
	if len(snapshot) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(snapshot))
	}
	if snapshot[0].Title != "updated" {
		t.Errorf("expected upsert to keep position, got %+v", snapshot[0])
	}
	if snapshot[3].ID != "4" {
		t.Errorf("expected new task appended, got %+v", snapshot[3])
	}
}

func TestStore_Get(t *testing.T) {
	store := NewStore()
	store.Put(task.Task{ID: "x", Title: "x"})

	if _, ok := store.Get("x"); !ok {
		t.Error("expected task x to be cached")
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("expected missing task to be absent")
	}
}

func TestStore_Remove(t *testing.T) {
	store := NewStore()
	store.Replace(createTestTasks())

	store.Remove("2")
	store.Remove("does-not-exist")

	snapshot := store.Snapshot()
	if len(snapshot) != 2 || snapshot[0].ID != "1" || snapshot[1].ID != "3" {
		t.Errorf("unexpected snapshot after remove: %+v", snapshot)
	}
}

func TestStore_RemoveCompleted(t *testing.T) {
	store := NewStore()
	store.Replace(createTestTasks())

	if removed := store.RemoveCompleted(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	for _, tk := range store.Snapshot() {
		if tk.Completed {
			t.Errorf("completed task %s still cached", tk.ID)
		}
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore()
	store.Replace(createTestTasks())

	store.Clear()

	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
	if store.IsDirty() {
		t.Error("Clear must not touch the dirty flag")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			store.Put(task.Task{ID: string(rune('a' + n)), Title: "t"})
		}(i)
		go func() {
			defer wg.Done()
			_ = store.Snapshot()
			_ = store.IsDirty()
		}()
	}
	wg.Wait()

	if store.Len() != 10 {
		t.Errorf("expected 10 tasks, got %d", store.Len())
	}
}
