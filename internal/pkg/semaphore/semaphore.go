package semaphore

import (
	"sync"

	"github.com/JrMarcco/jsignage/internal/errs"
)

// MaxCntSemaphore 计数信号量，上限可以在运行时调整。
//
// 上限下调后已持有的名额不受影响，只拒绝新的申请。
type MaxCntSemaphore struct {
	mu sync.Mutex

	maxCnt  int
	currCnt int
}

// TryAcquire 申请一个名额，超过上限返回 errs.ErrSubscriberLimit。maxCnt <= 0 表示不限制。
func (s *MaxCntSemaphore) TryAcquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxCnt > 0 && s.currCnt >= s.maxCnt {
		return errs.ErrSubscriberLimit
	}
	s.currCnt++
	return nil
}

func (s *MaxCntSemaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currCnt > 0 {
		s.currCnt--
	}
}

func (s *MaxCntSemaphore) UpdateMaxCnt(maxCnt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxCnt = maxCnt
}

func (s *MaxCntSemaphore) MaxCnt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCnt
}

func (s *MaxCntSemaphore) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currCnt
}

func NewMaxCntSemaphore(maxCnt int) *MaxCntSemaphore {
	return &MaxCntSemaphore{
		maxCnt: maxCnt,
	}
}
