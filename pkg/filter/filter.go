package filter

import (
	"fmt"
	"io"

	cansniffer "github.com/samsamfire/gocansniffer"
	log "github.com/sirupsen/logrus"
)

const (
	MaxBanks       = 14
	SlotsPerBank   = 2
	MaxFilters     = MaxBanks * SlotsPerBank
	StdMaskDefault = cansniffer.MaxStandardID
	ExtMaskDefault = cansniffer.MaxExtendedID
)

type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
	StatusError // hardware refused the configuration, slot stays reserved
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "INACTIVE"
	case StatusActive:
		return "ACTIVE"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry describes one acceptance filter and where it lives in hardware
type Entry struct {
	ID     uint32
	Mask   uint32
	Kind   cansniffer.IDKind
	Status Status
	Bank   uint8
	Slot   uint8
}

// An entry occupies its slot while active or in error
func (e *Entry) occupied() bool {
	return e.Status != StatusInactive
}

type bank struct {
	filters   [SlotsPerBank]Entry
	usedSlots uint8
}

func (b *bank) isUsed() bool {
	return b.usedSlots > 0
}

func (b *bank) freeSlot() (uint8, bool) {
	for slot := range b.filters {
		if !b.filters[slot].occupied() {
			return uint8(slot), true
		}
	}
	return 0, false
}

// Manager allocates hardware filter bank slots to identifier/mask filters.
// Placement packs filters into partially used banks first so that empty
// banks stay available as a whole.
type Manager struct {
	ctrl          cansniffer.FilterController
	banks         [MaxBanks]bank
	activeCount   int
	usedBankCount int
}

func NewManager(ctrl cansniffer.FilterController) (*Manager, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("%w: nil filter controller", cansniffer.ErrInvalidParam)
	}
	return &Manager{ctrl: ctrl}, nil
}

// DefaultMask returns the match-all-bits mask for the kind
func DefaultMask(kind cansniffer.IDKind) uint32 {
	if kind == cansniffer.Extended {
		return ExtMaskDefault
	}
	return StdMaskDefault
}

func validKind(kind cansniffer.IDKind) bool {
	return kind == cansniffer.Standard || kind == cansniffer.Extended
}

// Add reserves a slot for the filter and configures the hardware.
// A mask of 0 selects [DefaultMask]. A rejected request leaves all accounting
// untouched. If the hardware refuses the configuration the entry is kept with
// [StatusError] and must be removed explicitly.
func (m *Manager) Add(id uint32, mask uint32, kind cansniffer.IDKind) (Entry, error) {
	if !validKind(kind) {
		return Entry{}, fmt.Errorf("%w: filter kind %v", cansniffer.ErrInvalidParam, kind)
	}
	if id > kind.MaxID() {
		return Entry{}, fmt.Errorf("%w: id x%x out of range for %v", cansniffer.ErrInvalidParam, id, kind)
	}
	if mask == 0 {
		mask = DefaultMask(kind)
	}
	if mask > kind.MaxID() {
		return Entry{}, fmt.Errorf("%w: mask x%x out of range for %v", cansniffer.ErrInvalidParam, mask, kind)
	}
	if m.Exists(id) {
		return Entry{}, fmt.Errorf("%w: filter with id x%x already exists", cansniffer.ErrInvalidParam, id)
	}
	if m.activeCount >= MaxFilters {
		return Entry{}, fmt.Errorf("%w: filter limit reached (%v/%v)", cansniffer.ErrResourceExhausted, m.activeCount, MaxFilters)
	}
	bankNum, slotNum, ok := m.findFreeSlot()
	if !ok {
		return Entry{}, fmt.Errorf("%w: no free filter slot", cansniffer.ErrResourceExhausted)
	}

	b := &m.banks[bankNum]
	entry := &b.filters[slotNum]
	*entry = Entry{
		ID:     id,
		Mask:   mask,
		Kind:   kind,
		Status: StatusActive,
		Bank:   bankNum,
		Slot:   slotNum,
	}
	if !b.isUsed() {
		m.usedBankCount++
	}
	b.usedSlots++
	m.activeCount++

	err := m.ctrl.ConfigureFilter(bankNum, slotNum, id, mask, kind)
	if err != nil {
		entry.Status = StatusError
		log.Errorf("[FILTER] failed to configure bank %v slot %v id x%x mask x%x (%v) : %v", bankNum, slotNum, id, mask, kind, err)
		return *entry, fmt.Errorf("%w: configure bank %v slot %v: %v", cansniffer.ErrHardware, bankNum, slotNum, err)
	}
	log.Debugf("[FILTER] added id x%x mask x%x (%v) in bank %v slot %v", id, mask, kind, bankNum, slotNum)
	return *entry, nil
}

// Remove frees the slot holding id. A hardware disable failure is only logged,
// the slot is released regardless.
func (m *Manager) Remove(id uint32) error {
	bankNum, slotNum, ok := m.findFilterSlot(id)
	if !ok {
		return fmt.Errorf("%w: filter x%x", cansniffer.ErrNotFound, id)
	}
	b := &m.banks[bankNum]
	entry := &b.filters[slotNum]

	if err := m.ctrl.DisableFilter(bankNum, slotNum); err != nil {
		log.Warnf("[FILTER] failed to disable bank %v slot %v : %v", bankNum, slotNum, err)
	}

	entry.Status = StatusInactive
	b.usedSlots--
	m.activeCount--
	if !b.isUsed() {
		m.usedBankCount--
	}
	log.Debugf("[FILTER] removed id x%x from bank %v slot %v", id, bankNum, slotNum)
	return nil
}

// RemoveAll disables every bank and resets accounting unconditionally.
// The returned error only reports that the bulk hardware disable failed.
func (m *Manager) RemoveAll() error {
	err := m.ctrl.DisableAllFilters()
	for i := range m.banks {
		b := &m.banks[i]
		b.usedSlots = 0
		for slot := range b.filters {
			b.filters[slot].Status = StatusInactive
		}
	}
	m.activeCount = 0
	m.usedBankCount = 0
	if err != nil {
		log.Warnf("[FILTER] some filters failed to disable : %v", err)
		return fmt.Errorf("%w: disable all filters: %v", cansniffer.ErrHardware, err)
	}
	log.Debugf("[FILTER] all filters removed")
	return nil
}

// Find returns the entry for id, active or in error
func (m *Manager) Find(id uint32) (Entry, bool) {
	bankNum, slotNum, ok := m.findFilterSlot(id)
	if !ok {
		return Entry{}, false
	}
	return m.banks[bankNum].filters[slotNum], true
}

func (m *Manager) Exists(id uint32) bool {
	_, _, ok := m.findFilterSlot(id)
	return ok
}

// AppendFilters appends every occupied entry to dst in bank/slot order
func (m *Manager) AppendFilters(dst []Entry) []Entry {
	for i := range m.banks {
		b := &m.banks[i]
		if !b.isUsed() {
			continue
		}
		for slot := range b.filters {
			if b.filters[slot].occupied() {
				dst = append(dst, b.filters[slot])
			}
		}
	}
	return dst
}

// Filters returns a copy of every occupied entry
func (m *Manager) Filters() []Entry {
	return m.AppendFilters(make([]Entry, 0, m.activeCount))
}

// Number of occupied slots
func (m *Manager) ActiveCount() int {
	return m.activeCount
}

func (m *Manager) UsedBankCount() int {
	return m.usedBankCount
}

func (m *Manager) FreeCount() int {
	return MaxFilters - m.activeCount
}

func (m *Manager) TotalCount() int {
	return MaxFilters
}

// BankUsage returns the used slot count of a bank
func (m *Manager) BankUsage(bankNum uint8) int {
	if int(bankNum) >= MaxBanks {
		return 0
	}
	return int(m.banks[bankNum].usedSlots)
}

func formatID(id uint32, kind cansniffer.IDKind) string {
	if kind == cansniffer.Extended {
		return fmt.Sprintf("0x%08X", id)
	}
	return fmt.Sprintf("0x%03X", id)
}

// WriteList renders the filter table
func (m *Manager) WriteList(w io.Writer) {
	fmt.Fprintf(w, "\r\n=== Active Filters ===\r\n")
	fmt.Fprintf(w, "Total: %d/%d filters, %d/%d banks used\r\n", m.activeCount, MaxFilters, m.usedBankCount, MaxBanks)
	fmt.Fprintf(w, "--------------------------------\r\n")
	if m.activeCount == 0 {
		fmt.Fprintf(w, "No active filters\r\n")
	} else {
		fmt.Fprintf(w, "#  Bank Slot ID         Mask       Type Status\r\n")
		fmt.Fprintf(w, "-- ---- ---- ---------- ---------- ---- ------\r\n")
		var buf [MaxFilters]Entry
		for index, entry := range m.AppendFilters(buf[:0]) {
			fmt.Fprintf(w, "%-2d %-4d %-4d %-10s %-10s %-4s %-6s\r\n",
				index+1,
				entry.Bank,
				entry.Slot,
				formatID(entry.ID, entry.Kind),
				formatID(entry.Mask, entry.Kind),
				entry.Kind,
				entry.Status)
		}
	}
	fmt.Fprintf(w, "================================\r\n\r\n")
}

// WriteInfo renders the details of a single filter
func (m *Manager) WriteInfo(w io.Writer, id uint32) error {
	entry, ok := m.Find(id)
	if !ok {
		return fmt.Errorf("%w: filter x%x", cansniffer.ErrNotFound, id)
	}
	fmt.Fprintf(w, "\r\n=== Filter Details ===\r\n")
	fmt.Fprintf(w, "ID:          %s\r\n", formatID(entry.ID, entry.Kind))
	fmt.Fprintf(w, "Mask:        %s\r\n", formatID(entry.Mask, entry.Kind))
	fmt.Fprintf(w, "Type:        %v\r\n", entry.Kind)
	fmt.Fprintf(w, "Status:      %v\r\n", entry.Status)
	fmt.Fprintf(w, "Bank:        %d\r\n", entry.Bank)
	fmt.Fprintf(w, "Slot:        %d\r\n", entry.Slot)
	fmt.Fprintf(w, "=====================\r\n\r\n")
	return nil
}

// Search a bank already in use with a free slot, otherwise the first empty bank
func (m *Manager) findFreeSlot() (uint8, uint8, bool) {
	for bankNum := range m.banks {
		b := &m.banks[bankNum]
		if !b.isUsed() {
			continue
		}
		if slot, ok := b.freeSlot(); ok {
			return uint8(bankNum), slot, true
		}
	}
	for bankNum := range m.banks {
		if !m.banks[bankNum].isUsed() {
			return uint8(bankNum), 0, true
		}
	}
	return 0, 0, false
}

func (m *Manager) findFilterSlot(id uint32) (uint8, uint8, bool) {
	for bankNum := range m.banks {
		b := &m.banks[bankNum]
		if !b.isUsed() {
			continue
		}
		for slot := range b.filters {
			if b.filters[slot].occupied() && b.filters[slot].ID == id {
				return uint8(bankNum), uint8(slot), true
			}
		}
	}
	return 0, 0, false
}
