package bitring

import (
	"sync"
)

const (
	bitsPerWord = 64              // uint64 位数
	bitsMask    = bitsPerWord - 1 // 位操作掩码: 0x3f
	bitsShift   = 6               // 位计算偏移量: log2(64)

	defaultWindowSize     = 128 // 默认窗口大小
	defaultMinConsecutive = 3   // 默认最小连续事件数
)

// BitRing 用比特环记录最近 windowSize 次事件是否发生的滑动窗口。
//
// 连续发生次数达到 consecutiveThreshold，或窗口内发生率超过 eventRateThreshold 时触发。
type BitRing struct {
	mu sync.RWMutex

	words []uint64

	windowSize int
	writePos   int
	isFull     bool
	eventCount int

	consecutiveThreshold int
	eventRateThreshold   float64
}

func (br *BitRing) Add(eventHappened bool) {
	br.mu.Lock()
	defer br.mu.Unlock()

	// 窗口已满时当前位置的旧事件会被覆盖
	if br.isFull && br.bitAt(br.writePos) {
		br.eventCount--
	}
	br.setBit(br.writePos, eventHappened)
	if eventHappened {
		br.eventCount++
	}

	br.writePos++
	if br.writePos >= br.windowSize {
		br.writePos = 0
		br.isFull = true
	}
}

// ShouldTrigger 判断是否达到触发阈值
func (br *BitRing) ShouldTrigger() bool {
	br.mu.RLock()
	defer br.mu.RUnlock()

	currSize := br.currWindowSize()
	if currSize == 0 {
		return false
	}

	if currSize >= br.consecutiveThreshold && br.lastConsecutive() {
		return true
	}
	return float64(br.eventCount)/float64(currSize) > br.eventRateThreshold
}

func (br *BitRing) lastConsecutive() bool {
	for i := 1; i <= br.consecutiveThreshold; i++ {
		pos := (br.writePos - i + br.windowSize) % br.windowSize
		if !br.bitAt(pos) {
			return false
		}
	}
	return true
}

func (br *BitRing) bitAt(index int) bool {
	pos := index >> bitsShift
	offset := uint(index & bitsMask)
	return (br.words[pos]>>offset)&1 == 1
}

func (br *BitRing) setBit(index int, val bool) {
	pos := index >> bitsShift
	offset := uint(index & bitsMask)

	if val {
		br.words[pos] |= 1 << offset
		return
	}
	br.words[pos] &^= 1 << offset
}

func (br *BitRing) currWindowSize() int {
	if br.isFull {
		return br.windowSize
	}
	return br.writePos
}

func NewBitRing(windowSize int, consecutiveThreshold int, eventRateThreshold float64) *BitRing {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}

	if consecutiveThreshold <= 0 {
		consecutiveThreshold = defaultMinConsecutive
	}

	if consecutiveThreshold > windowSize {
		consecutiveThreshold = windowSize
	}

	if eventRateThreshold > 1 {
		eventRateThreshold = 1
	}

	return &BitRing{
		words:                make([]uint64, (windowSize+bitsMask)/bitsPerWord),
		windowSize:           windowSize,
		consecutiveThreshold: consecutiveThreshold,
		eventRateThreshold:   eventRateThreshold,
	}
}
