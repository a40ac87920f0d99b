package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ytaudio-server/internal/models"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	job := models.Job{ID: "a", Status: models.StatusProcessing}
	if err := s.Set(ctx, job); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Progress = 50
	again, _ := s.Get(ctx, "a")
	if again.Progress != 0 {
		t.Error("modifying a returned job must not change the stored one")
	}

	job.Status = models.StatusCompleted
	job.Filename = "a.mp3"
	if err := s.Set(ctx, job); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ = s.Get(ctx, "a")
	if got.Status != models.StatusCompleted || got.Filename != "a.mp3" {
		t.Errorf("expected replaced job, got %+v", got)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Errorf("deleting a missing job should succeed, got %v", err)
	}
}

func TestMemoryStoreListOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"c", "a", "b"} {
		_ = s.Set(ctx, models.Job{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, j := range list {
		ids = append(ids, j.ID)
	}
	if fmt.Sprint(ids) != "[c a b]" {
		t.Errorf("expected creation order [c a b], got %v", ids)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			for p := 0; p <= 100; p += 10 {
				_ = s.Set(ctx, models.Job{ID: id, Progress: float64(p)})
				_, _ = s.Get(ctx, id)
				_, _ = s.List(ctx)
			}
		}(i)
	}
	wg.Wait()

	list, _ := s.List(ctx)
	if len(list) != 20 {
		t.Fatalf("expected 20 jobs, got %d", len(list))
	}
	for _, j := range list {
		if j.Progress != 100 {
			t.Errorf("%s: expected final progress 100, got %v", j.ID, j.Progress)
		}
	}
}
