package aggregator

// slotBuffer is the byte history of one entity slot. ticks is the number of
// records written so far; len(data) is always ticks*size.
type slotBuffer struct {
	size  int
	data  []byte
	ticks int
}

func newSlotBuffer(size, capacityTicks int) *slotBuffer {
	return &slotBuffer{
		size: size,
		data: make([]byte, 0, size*capacityTicks),
	}
}

// padTo appends zero records until the buffer holds tick records. It never
// truncates.
func (b *slotBuffer) padTo(tick int) {
	if tick <= b.ticks {
		return
	}
	b.data = append(b.data, make([]byte, (tick-b.ticks)*b.size)...)
	b.ticks = tick
}

// writeAt places rec as the record for tick, zero filling any ticks the slot
// missed since its last record. A tick already written is overwritten.
func (b *slotBuffer) writeAt(tick int, rec []byte) {
	if tick < b.ticks {
		copy(b.data[tick*b.size:(tick+1)*b.size], rec)
		return
	}
	b.padTo(tick)
	b.data = append(b.data, rec...)
	b.ticks++
}

// Bytes returns the buffer contents.
func (b *slotBuffer) Bytes() []byte {
	return b.data
}

// Ticks returns the number of records in the buffer.
func (b *slotBuffer) Ticks() int {
	return b.ticks
}
