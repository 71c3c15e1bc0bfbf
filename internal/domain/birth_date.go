package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JrMarcco/jsignage/internal/errs"
)

const birthDateLayout = "2006-01-02"

// BirthDate 公历日期，不携带时区。
type BirthDate struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseBirthDate(s string) (BirthDate, error) {
	t, err := time.Parse(birthDateLayout, s)
	if err != nil {
		return BirthDate{}, fmt.Errorf("%w: %q", errs.ErrInvalidBirthDate, s)
	}
	return BirthDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (bd BirthDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", bd.Year, int(bd.Month), bd.Day)
}

func (bd BirthDate) IsZero() bool {
	return bd.Year == 0 && bd.Month == 0 && bd.Day == 0
}

// SameDay 判断月、日是否与 t 一致，t 需要调用方先转换到目标时区
func (bd BirthDate) SameDay(t time.Time) bool {
	return bd.Month == t.Month() && bd.Day == t.Day()
}

func (bd BirthDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(bd.String())
}

func (bd *BirthDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidBirthDate, err)
	}

	parsed, err := ParseBirthDate(s)
	if err != nil {
		return err
	}
	*bd = parsed
	return nil
}
