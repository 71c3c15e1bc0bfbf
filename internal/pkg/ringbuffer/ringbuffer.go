package ringbuffer

import (
	"sync"
	"time"

	"github.com/JrMarcco/jsignage/internal/errs"
)

// RingBuffer 一个固定大小、线程安全的环形 buffer，写满后覆盖最旧的元素。
type RingBuffer[T any] struct {
	mu sync.RWMutex

	buffer []T

	size     int
	count    int
	writePos int
}

func (rb *RingBuffer[T]) Add(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count < rb.size {
		rb.count++
	}

	rb.buffer[rb.writePos] = item
	rb.writePos = (rb.writePos + 1) % rb.size
}

// Items 按写入顺序（旧 -> 新）返回当前所有元素的拷贝
func (rb *RingBuffer[T]) Items() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	res := make([]T, 0, rb.count)
	start := (rb.writePos - rb.count + rb.size) % rb.size
	for i := 0; i < rb.count; i++ {
		res = append(res, rb.buffer[(start+i)%rb.size])
	}
	return res
}

// Last 返回最近写入的元素
func (rb *RingBuffer[T]) Last() (T, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var zero T
	if rb.count == 0 {
		return zero, false
	}
	return rb.buffer[(rb.writePos-1+rb.size)%rb.size], true
}

func (rb *RingBuffer[T]) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

func (rb *RingBuffer[T]) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

func NewRingBuffer[T any](size int) (*RingBuffer[T], error) {
	if size <= 0 {
		return nil, errs.ErrInvalidBufferSize
	}

	return &RingBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}, nil
}

// AvgDuration 计算 time.Duration 环形 buffer 的平均值
func AvgDuration(rb *RingBuffer[time.Duration]) time.Duration {
	items := rb.Items()
	if len(items) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range items {
		sum += d
	}
	return sum / time.Duration(len(items))
}
