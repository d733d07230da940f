package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	owners []int64
	due    map[int64]int
	err    error
}

func (f *fakeStore) ListOwners(context.Context) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.owners, nil
}

func (f *fakeStore) CountDue(_ context.Context, ownerID int64, _ time.Time) (int, error) {
	return f.due[ownerID], nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []int64
	failFor  map[int64]bool
}

func (f *fakeNotifier) Notify(_ context.Context, ownerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[ownerID] {
		return errors.New("delivery refused")
	}
	f.notified = append(f.notified, ownerID)
	return nil
}

func (f *fakeNotifier) got() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int64(nil), f.notified...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestHasDueToday(t *testing.T) {
	store := &fakeStore{due: map[int64]int{100: 3, 200: 0}}
	tr := New(store, &fakeNotifier{}, nil, 1)

	due, err := tr.HasDueToday(context.Background(), 100)
	if err != nil || !due {
		t.Errorf("owner 100: due=%v err=%v, want true", due, err)
	}
	due, err = tr.HasDueToday(context.Background(), 200)
	if err != nil || due {
		t.Errorf("owner 200: due=%v err=%v, want false", due, err)
	}
}

func TestRunNotifiesOnlyOwnersWithDueCards(t *testing.T) {
	store := &fakeStore{
		owners: []int64{100, 200, 300},
		due:    map[int64]int{100: 2, 200: 0, 300: 1},
	}
	notifier := &fakeNotifier{}
	tr := New(store, notifier, nil, 2)

	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := notifier.got()
	if len(got) != 2 || got[0] != 100 || got[1] != 300 {
		t.Errorf("notified = %v, want [100 300]", got)
	}
}

func TestRunIsolatesPerUserFailures(t *testing.T) {
	store := &fakeStore{
		owners: []int64{100, 200, 300},
		due:    map[int64]int{100: 1, 200: 1, 300: 1},
	}
	notifier := &fakeNotifier{failFor: map[int64]bool{200: true}}
	tr := New(store, notifier, nil, 1)

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("a single failed delivery must not fail the scan: %v", err)
	}
	got := notifier.got()
	if len(got) != 2 || got[0] != 100 || got[1] != 300 {
		t.Errorf("notified = %v, want the other users [100 300]", got)
	}
}

func TestRunFailsWhenOwnerListUnavailable(t *testing.T) {
	store := &fakeStore{err: errors.New("database locked")}
	tr := New(store, &fakeNotifier{}, nil, 1)

	if err := tr.Run(context.Background()); err == nil {
		t.Fatal("expected error when the owner list cannot be read")
	}
}
