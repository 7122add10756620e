package aggregator

// slotKey identifies an entity across snapshots. Positional keys use the
// entity's index in the snapshot, stable keys an id supplied by the source.
type slotKey struct {
	stable bool
	id     uint64
}

func positional(index int) slotKey {
	return slotKey{id: uint64(index)}
}

func stableKey(id uint64) slotKey {
	return slotKey{stable: true, id: id}
}

// slotTable assigns slots to keys in first-seen order.
type slotTable struct {
	index map[slotKey]int
}

func newSlotTable() *slotTable {
	return &slotTable{index: make(map[slotKey]int)}
}

// resolve returns the slot for key, assigning the next free slot if the key
// has not been seen before.
func (t *slotTable) resolve(key slotKey) (slot int, created bool) {
	if slot, ok := t.index[key]; ok {
		return slot, false
	}
	slot = len(t.index)
	t.index[key] = slot
	return slot, true
}

func (t *slotTable) len() int {
	return len(t.index)
}
