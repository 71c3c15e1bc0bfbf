package birthday

import (
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
)

// IsEligible 判断 today 在 loc 时区下是否是投稿人的生日。
//
// 没有生日信息视为不符合，2 月 29 日出生的只在 2 月 29 日符合。
func IsEligible(bd *domain.BirthDate, today time.Time, loc *time.Location) bool {
	if bd == nil || bd.IsZero() {
		return false
	}
	if loc != nil {
		today = today.In(loc)
	}
	return bd.SameDay(today)
}

// Evaluator 生日免单资格判断，受理投稿时会重新判断一次
type Evaluator interface {
	IsEligible(bd *domain.BirthDate) bool
	// IsEligibleAt 按调用方给定的时刻判断，受理时与排队使用同一时刻
	IsEligibleAt(bd *domain.BirthDate, at time.Time) bool
}

var _ Evaluator = (*DefaultEvaluator)(nil)

type DefaultEvaluator struct {
	loc *time.Location
	now func() time.Time
}

func (e *DefaultEvaluator) IsEligible(bd *domain.BirthDate) bool {
	return e.IsEligibleAt(bd, e.now())
}

func (e *DefaultEvaluator) IsEligibleAt(bd *domain.BirthDate, at time.Time) bool {
	return IsEligible(bd, at, e.loc)
}

func NewDefaultEvaluator(loc *time.Location, now func() time.Time) *DefaultEvaluator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &DefaultEvaluator{
		loc: loc,
		now: now,
	}
}
