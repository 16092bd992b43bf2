package history

import "llm-dealer/internal/types"

// Buffer keeps the most recent bars up to a fixed capacity. Appending past
// capacity evicts the oldest bar.
type Buffer struct {
	bars    []types.Bar
	maxSize int
}

func NewBuffer(maxSize int) *Buffer {
	if maxSize < 0 {
		maxSize = 0
	}
	return &Buffer{bars: make([]types.Bar, 0, maxSize), maxSize: maxSize}
}

func (b *Buffer) Append(bar types.Bar) {
	if b.maxSize == 0 {
		return
	}
	if len(b.bars) == b.maxSize {
		copy(b.bars, b.bars[1:])
		b.bars[len(b.bars)-1] = bar
		return
	}
	b.bars = append(b.bars, bar)
}

// Replace swaps the contents for the last maxSize bars of bars.
func (b *Buffer) Replace(bars []types.Bar) {
	if len(bars) > b.maxSize {
		bars = bars[len(bars)-b.maxSize:]
	}
	b.bars = append(b.bars[:0], bars...)
}

func (b *Buffer) Reset() {
	b.bars = b.bars[:0]
}

// Bars returns a copy of the buffered bars, oldest first.
func (b *Buffer) Bars() []types.Bar {
	out := make([]types.Bar, len(b.bars))
	copy(out, b.bars)
	return out
}

func (b *Buffer) Len() int { return len(b.bars) }

func (b *Buffer) Cap() int { return b.maxSize }

func (b *Buffer) Last() (types.Bar, bool) {
	if len(b.bars) == 0 {
		return types.Bar{}, false
	}
	return b.bars[len(b.bars)-1], true
}
