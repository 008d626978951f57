package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/infra/storage"
)

func TestDeliveryRepoListRecent(t *testing.T) {
	repo := NewDeliveryRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := repo.RecordDelivery(ctx, &domain.DeliveryRecord{
			ExecutionID: fmt.Sprintf("exec-%d", i),
			HookID:      "h",
			Status:      string(domain.StatusSuccess),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	recs, err := repo.ListRecent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].ExecutionID != "exec-4" || recs[2].ExecutionID != "exec-2" {
		t.Errorf("order wrong: %s .. %s", recs[0].ExecutionID, recs[2].ExecutionID)
	}
}

func TestDeliveryRepoCountByStatus(t *testing.T) {
	repo := NewDeliveryRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	add := func(status string, at time.Time) {
		t.Helper()
		if err := repo.RecordDelivery(ctx, &domain.DeliveryRecord{Status: status, CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}
	add(string(domain.StatusSuccess), base)
	add(string(domain.StatusSuccess), base.Add(time.Hour))
	add(string(domain.StatusFailed), base.Add(time.Hour))

	counts, err := repo.CountByStatus(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if counts[string(domain.StatusSuccess)] != 1 || counts[string(domain.StatusFailed)] != 1 {
		t.Errorf("counts %v", counts)
	}
}

func TestDeliveryRepoBoundedHistory(t *testing.T) {
	repo := NewDeliveryRepo()
	ctx := context.Background()

	for i := 0; i < maxHistory+10; i++ {
		if err := repo.RecordDelivery(ctx, &domain.DeliveryRecord{ExecutionID: fmt.Sprintf("e%d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	if len(repo.recs) != maxHistory {
		t.Errorf("history len %d, want %d", len(repo.recs), maxHistory)
	}
}

func TestDeadLetterRepoLifecycle(t *testing.T) {
	repo := NewDeadLetterRepo()
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		n := &domain.QueuedNotification{
			ID:      fmt.Sprintf("n%d", i),
			HookID:  "h",
			Payload: map[string]any{"text": "x"},
		}
		if err := repo.Add(ctx, n, "max retries exceeded"); err != nil {
			t.Fatal(err)
		}
		clock = clock.Add(time.Hour)
	}

	letters, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(letters) != 3 {
		t.Fatalf("got %d letters, want 3", len(letters))
	}
	if letters[0].Notification.ID != "n0" {
		t.Errorf("oldest first: got %s", letters[0].Notification.ID)
	}
	if letters[0].Reason != "max retries exceeded" {
		t.Errorf("reason %q", letters[0].Reason)
	}

	if err := repo.Delete(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, "n1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}

	// n0 was dropped 2h before n2; purge the older one only.
	purged, err := repo.Purge(ctx, clock.Add(-90*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged %d, want 1", purged)
	}
	letters, _ = repo.List(ctx, 10)
	if len(letters) != 1 || letters[0].Notification.ID != "n2" {
		t.Errorf("remaining %+v", letters)
	}
}
