package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/riskscope/riskscope/internal/utils"
	"github.com/riskscope/riskscope/pkg/assess"
	"github.com/riskscope/riskscope/pkg/schema"
	"github.com/riskscope/riskscope/pkg/storage"
	"github.com/riskscope/riskscope/pkg/validate"
)

const (
	DefaultSlot       = "predictionHistory"
	DefaultMaxRecords = 50
)

// StorageError reports a failed read or write of the durable slot.
type StorageError struct {
	Op   string
	Slot string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("history %s %q: %v", e.Op, e.Slot, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Option customises a History at Open time.
type Option func(*History)

func WithSlotName(name string) Option {
	return func(h *History) {
		if name != "" {
			h.slotName = name
		}
	}
}

// WithMaxRecords lowers the cap. Values outside 1..DefaultMaxRecords keep
// the default.
func WithMaxRecords(n int) Option {
	return func(h *History) {
		if n > 0 && n <= DefaultMaxRecords {
			h.max = n
		}
	}
}

func WithSchema(s schema.Schema) Option {
	return func(h *History) { h.schema = s }
}

// History is the ordered, newest-first list of assessments backed by a Slot.
type History struct {
	mu       sync.RWMutex
	slot     storage.Slot
	slotName string
	max      int
	schema   schema.Schema
	records  []assess.Result
}

// Open builds a History over slot and loads whatever it already holds.
func Open(ctx context.Context, slot storage.Slot, opts ...Option) *History {
	h := &History{
		slot:     slot,
		slotName: DefaultSlot,
		max:      DefaultMaxRecords,
		schema:   schema.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.Load(ctx)
	return h
}

// Load replaces the in-memory list with the slot contents. A missing, empty
// or undecodable slot yields an empty history.
func (h *History) Load(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil

	raw, found, err := h.slot.Get(ctx, h.slotName)
	if err != nil {
		utils.Log.Warnf("Could not read history, starting empty: %v", &StorageError{Op: "read", Slot: h.slotName, Err: err})
		return
	}
	if !found || len(raw) == 0 {
		return
	}
	var records []assess.Result
	if err := json.Unmarshal(raw, &records); err != nil {
		utils.Log.Warnf("History slot %q is corrupt, starting empty: %v", h.slotName, err)
		return
	}
	if len(records) > h.max {
		records = records[:h.max]
	}
	h.records = records
	utils.Log.Debugf("Loaded %d history records from %q", len(records), h.slotName)
}

// Insert validates r, prepends it and drops the oldest entries beyond the cap.
// If persisting fails the record stays visible in memory and a *StorageError
// is returned.
func (h *History) Insert(ctx context.Context, r assess.Result) error {
	if err := validate.Measurements(r.InputData, h.schema); err != nil {
		return fmt.Errorf("refusing to store result: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	next := make([]assess.Result, 0, len(h.records)+1)
	next = append(next, r.Clone())
	next = append(next, h.records...)
	if len(next) > h.max {
		next = next[:h.max]
	}
	h.records = next
	return h.persist(ctx)
}

// Remove deletes the record at pos. Out-of-range positions are ignored.
func (h *History) Remove(ctx context.Context, pos int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if pos < 0 || pos >= len(h.records) {
		utils.Log.Debugf("Ignoring remove of position %d (history has %d records)", pos, len(h.records))
		return nil
	}
	next := make([]assess.Result, 0, len(h.records)-1)
	next = append(next, h.records[:pos]...)
	next = append(next, h.records[pos+1:]...)
	h.records = next
	return h.persist(ctx)
}

// Clear empties the history. The slot is kept and holds an empty list.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
	return h.persist(ctx)
}

// Records returns a copy of the current list, newest first.
func (h *History) Records() []assess.Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]assess.Result, len(h.records))
	for i, r := range h.records {
		out[i] = r.Clone()
	}
	return out
}

// Get returns the record at pos.
func (h *History) Get(pos int) (assess.Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if pos < 0 || pos >= len(h.records) {
		return assess.Result{}, false
	}
	return h.records[pos].Clone(), true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

func (h *History) Max() int { return h.max }

// persist must be called with h.mu held.
func (h *History) persist(ctx context.Context) error {
	records := h.records
	if records == nil {
		records = []assess.Result{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return &StorageError{Op: "encode", Slot: h.slotName, Err: err}
	}
	if err := h.slot.Put(ctx, h.slotName, data); err != nil {
		serr := &StorageError{Op: "write", Slot: h.slotName, Err: err}
		utils.Log.Warnf("History change is visible for this session but was not saved: %v", serr)
		return serr
	}
	return nil
}
