package can

import (
	"fmt"
	"sync"

	cansniffer "github.com/samsamfire/gocansniffer"
)

// Acceptance filter hardware layout
const (
	FilterBanks    = 14
	SlotsPerBank   = 2
	FilterCapacity = FilterBanks * SlotsPerBank
)

// FilterSlot is one id/mask acceptance filter
type FilterSlot struct {
	Bank    uint8
	Slot    uint8
	Enabled bool
	ID      uint32
	Mask    uint32
	Kind    cansniffer.IDKind
}

// Matches reports whether frame passes this filter. A filter only matches
// frames of its own kind.
func (f *FilterSlot) Matches(frame *cansniffer.Frame) bool {
	return f.Enabled && f.Kind == frame.Kind && frame.ID&f.Mask == f.ID&f.Mask
}

// FilterTable is a software model of the controller filter banks.
// It implements [cansniffer.FilterController] and is safe for concurrent use,
// drivers consult it from their reception goroutine.
// When no slot is enabled every frame is accepted.
type FilterTable struct {
	mu      sync.RWMutex
	slots   [FilterBanks][SlotsPerBank]FilterSlot
	enabled int
}

func checkSlot(bank uint8, slot uint8) error {
	if bank >= FilterBanks || slot >= SlotsPerBank {
		return fmt.Errorf("%w: filter bank %v slot %v", cansniffer.ErrInvalidParam, bank, slot)
	}
	return nil
}

func (t *FilterTable) ConfigureFilter(bank uint8, slot uint8, id uint32, mask uint32, kind cansniffer.IDKind) error {
	if err := checkSlot(bank, slot); err != nil {
		return err
	}
	if id > kind.MaxID() || mask > kind.MaxID() {
		return fmt.Errorf("%w: id x%x mask x%x for %v", cansniffer.ErrInvalidParam, id, mask, kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := &t.slots[bank][slot]
	if !entry.Enabled {
		t.enabled++
	}
	*entry = FilterSlot{Bank: bank, Slot: slot, Enabled: true, ID: id, Mask: mask, Kind: kind}
	return nil
}

func (t *FilterTable) DisableFilter(bank uint8, slot uint8) error {
	if err := checkSlot(bank, slot); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := &t.slots[bank][slot]
	if entry.Enabled {
		t.enabled--
	}
	entry.Enabled = false
	return nil
}

func (t *FilterTable) DisableAllFilters() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for bank := range t.slots {
		for slot := range t.slots[bank] {
			t.slots[bank][slot].Enabled = false
		}
	}
	t.enabled = 0
	return nil
}

// Accepts reports whether frame passes at least one enabled filter
func (t *FilterTable) Accepts(frame *cansniffer.Frame) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.enabled == 0 {
		return true
	}
	for bank := range t.slots {
		for slot := range t.slots[bank] {
			if t.slots[bank][slot].Matches(frame) {
				return true
			}
		}
	}
	return false
}

// Filters returns the enabled slots in bank/slot order
func (t *FilterTable) Filters() []FilterSlot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	filters := make([]FilterSlot, 0, t.enabled)
	for bank := range t.slots {
		for slot := range t.slots[bank] {
			if t.slots[bank][slot].Enabled {
				filters = append(filters, t.slots[bank][slot])
			}
		}
	}
	return filters
}

// Number of enabled slots
func (t *FilterTable) EnabledCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
