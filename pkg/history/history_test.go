package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/storage"
	"github.com/riskscope/riskscope/pkg/validate"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func validInput() assess.Measurements {
	return assess.Measurements{
		"Pregnancies":              1,
		"Glucose":                  110,
		"BloodPressure":            70,
		"SkinThickness":            20,
		"Insulin":                  80,
		"BMI":                      24.1,
		"DiabetesPedigreeFunction": 0.3,
		"Age":                      33,
	}
}

func result(i int) assess.Result {
	return assess.Result{
		Timestamp:      assess.Timestamp{Time: base.Add(time.Duration(i) * time.Minute)},
		Prediction:     i % 2,
		RiskLevel:      assess.RiskLabel(i % 2),
		Confidence:     float64(50 + i%50),
		Probability:    assess.Probability{LowRisk: 40, HighRisk: 60},
		InputData:      validInput(),
		Recommendation: []string{"rec"},
	}
}

func confidences(rs []assess.Result) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Confidence
	}
	return out
}

func timestamps(rs []assess.Result) []time.Time {
	out := make([]time.Time, len(rs))
	for i, r := range rs {
		out[i] = r.Timestamp.Time
	}
	return out
}

type failingSlot struct {
	storage.Memory
	failPut bool
	failGet bool
}

var errDisk = errors.New("disk full")

func (f *failingSlot) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errDisk
	}
	return f.Memory.Get(ctx, name)
}

func (f *failingSlot) Put(ctx context.Context, name string, value []byte) error {
	if f.failPut {
		return errDisk
	}
	return f.Memory.Put(ctx, name, value)
}

func TestInsertNewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	h := Open(ctx, storage.NewMemory())

	for i := 0; i < 52; i++ {
		if err := h.Insert(ctx, result(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	got := h.Records()
	if len(got) != DefaultMaxRecords {
		t.Fatalf("expected %d records, got %d", DefaultMaxRecords, len(got))
	}
	var want []time.Time
	for i := 51; i >= 2; i-- {
		want = append(want, base.Add(time.Duration(i)*time.Minute))
	}
	if diff := cmp.Diff(want, timestamps(got)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestInsertPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory()
	h := Open(ctx, slot)
	for i := 0; i < 3; i++ {
		if err := h.Insert(ctx, result(i)); err != nil {
			t.Fatal(err)
		}
	}

	reloaded := Open(ctx, slot)
	if diff := cmp.Diff(timestamps(h.Records()), timestamps(reloaded.Records())); diff != "" {
		t.Fatalf("reload mismatch (-mem +disk):\n%s", diff)
	}
	if got := reloaded.Records()[0].InputData; !got.Equal(validInput()) {
		t.Fatalf("input data lost on reload: %v", got)
	}
}

func TestInsertRejectsUnvalidatedInput(t *testing.T) {
	ctx := context.Background()
	h := Open(ctx, storage.NewMemory())
	r := result(0)
	r.InputData["Glucose"] = 999

	err := h.Insert(ctx, r)
	var verr *validate.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.Len() != 0 {
		t.Fatal("invalid record was stored")
	}
}

func TestInsertWriteFailureKeepsSessionState(t *testing.T) {
	ctx := context.Background()
	slot := &failingSlot{failPut: true}
	h := Open(ctx, slot)

	err := h.Insert(ctx, result(1))
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Op != "write" || !errors.Is(err, errDisk) {
		t.Fatalf("expected write StorageError, got %v", err)
	}
	if h.Len() != 1 {
		t.Fatal("record should remain visible for the session")
	}
	if _, found, _ := slot.Memory.Get(ctx, DefaultSlot); found {
		t.Fatal("nothing should have been written")
	}
}

func TestInsertStoresSnapshot(t *testing.T) {
	ctx := context.Background()
	h := Open(ctx, storage.NewMemory())
	r := result(0)
	if err := h.Insert(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.InputData["Age"] = 70
	got := h.Records()
	got[0].Recommendation[0] = "changed"
	stored, _ := h.Get(0)
	if stored.InputData["Age"] != 33 || stored.Recommendation[0] != "rec" {
		t.Fatalf("stored record was mutated through caller copies: %+v", stored)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory()
	h := Open(ctx, slot)
	for i := 0; i < 4; i++ {
		if err := h.Insert(ctx, result(i)); err != nil {
			t.Fatal(err)
		}
	}
	// order is 3,2,1,0
	if err := h.Remove(ctx, 1); err != nil {
		t.Fatal(err)
	}
	want := []time.Time{base.Add(3 * time.Minute), base.Add(1 * time.Minute), base}
	if diff := cmp.Diff(want, timestamps(h.Records())); diff != "" {
		t.Fatalf("unexpected records after remove (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, timestamps(Open(ctx, slot).Records())); diff != "" {
		t.Fatalf("remove not persisted (-want +got):\n%s", diff)
	}

	for _, pos := range []int{-1, 3, 100} {
		if err := h.Remove(ctx, pos); err != nil {
			t.Fatalf("out of range remove(%d) should be a no-op, got %v", pos, err)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("out of range remove changed the history: %d", h.Len())
	}
}

func TestClearKeepsSlot(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory()
	h := Open(ctx, slot)
	if err := h.Insert(ctx, result(0)); err != nil {
		t.Fatal(err)
	}
	if err := h.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 0 {
		t.Fatal("history not cleared")
	}
	raw, found, err := slot.Get(ctx, DefaultSlot)
	if err != nil || !found || string(raw) != "[]" {
		t.Fatalf("expected empty list in slot, got %q found=%v err=%v", raw, found, err)
	}
}

func TestLoadFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func() storage.Slot{
		"absent": func() storage.Slot { return storage.NewMemory() },
		"empty": func() storage.Slot {
			m := storage.NewMemory()
			m.Put(ctx, DefaultSlot, nil)
			return m
		},
		"corrupt": func() storage.Slot {
			m := storage.NewMemory()
			m.Put(ctx, DefaultSlot, []byte("{not json"))
			return m
		},
		"read error": func() storage.Slot { return &failingSlot{failGet: true} },
	}
	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			h := Open(ctx, mk())
			if h.Len() != 0 {
				t.Fatalf("expected empty history, got %d", h.Len())
			}
			if err := h.Insert(ctx, result(0)); err != nil {
				t.Fatalf("store should stay usable: %v", err)
			}
		})
	}
}

func TestMaxRecordsNeverExceedsDefault(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{-1, 0, DefaultMaxRecords + 1, 1000} {
		if got := Open(ctx, storage.NewMemory(), WithMaxRecords(n)).Max(); got != DefaultMaxRecords {
			t.Errorf("WithMaxRecords(%d): Max() = %d, want %d", n, got, DefaultMaxRecords)
		}
	}
	if got := Open(ctx, storage.NewMemory(), WithMaxRecords(1)).Max(); got != 1 {
		t.Errorf("WithMaxRecords(1): Max() = %d", got)
	}
}

func TestLoadTruncatesOversizedSlot(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemory()
	big := Open(ctx, slot, WithMaxRecords(10))
	for i := 0; i < 10; i++ {
		if err := big.Insert(ctx, result(i)); err != nil {
			t.Fatal(err)
		}
	}
	small := Open(ctx, slot, WithMaxRecords(4))
	if small.Len() != 4 || small.Max() != 4 {
		t.Fatalf("expected 4 records, got %d", small.Len())
	}
	if first, _ := small.Get(0); !first.Timestamp.Equal(base.Add(9 * time.Minute)) {
		t.Fatalf("truncation should keep newest records, got %v", first.Timestamp)
	}
}

func TestSQLiteBackedHistory(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "h.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := Open(ctx, db, WithSlotName("custom"))
	for i := 0; i < 3; i++ {
		if err := h.Insert(ctx, result(i)); err != nil {
			t.Fatal(err)
		}
	}
	again := Open(ctx, db, WithSlotName("custom"))
	if diff := cmp.Diff(confidences(h.Records()), confidences(again.Records())); diff != "" {
		t.Fatalf("sqlite reload mismatch:\n%s", diff)
	}
	if other := Open(ctx, db); other.Len() != 0 {
		t.Fatal("default slot should be independent")
	}
}
