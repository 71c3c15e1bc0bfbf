package pricing

import (
	"fmt"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/shopspring/decimal"
)

// Pricer 计算投稿费用
type Pricer interface {
	Price(channel domain.Channel, durationMinutes int) (decimal.Decimal, error)
}

// Rate 渠道费率，费用 = max(Minimum, PerMinute * 分钟数)，四舍五入到分
type Rate struct {
	PerMinute decimal.Decimal
	Minimum   decimal.Decimal
}

// ParseRate 从配置中的十进制字符串解析费率
func ParseRate(perMinute string, minimum string) (Rate, error) {
	pm, err := decimal.NewFromString(perMinute)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: per minute rate %q", errs.ErrInvalidParam, perMinute)
	}

	mini := decimal.Zero
	if minimum != "" {
		mini, err = decimal.NewFromString(minimum)
		if err != nil {
			return Rate{}, fmt.Errorf("%w: minimum rate %q", errs.ErrInvalidParam, minimum)
		}
	}

	if pm.IsNegative() || mini.IsNegative() {
		return Rate{}, fmt.Errorf("%w: negative rate", errs.ErrInvalidParam)
	}
	return Rate{PerMinute: pm, Minimum: mini}, nil
}

// priceScale 与持久化的 decimal(10,2) 一致
const priceScale = 2

var _ Pricer = (*RateTable)(nil)

// RateTable 按渠道配置的费率表，初始化后只读
type RateTable struct {
	rates map[domain.Channel]Rate
}

func (rt *RateTable) Price(channel domain.Channel, durationMinutes int) (decimal.Decimal, error) {
	rate, ok := rt.rates[channel]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", errs.ErrNoRate, channel)
	}

	price := rate.PerMinute.Mul(decimal.NewFromInt(int64(durationMinutes)))
	return decimal.Max(rate.Minimum, price).Round(priceScale), nil
}

func NewRateTable(rates map[domain.Channel]Rate) *RateTable {
	copied := make(map[domain.Channel]Rate, len(rates))
	for c, r := range rates {
		copied[c] = r
	}
	return &RateTable{rates: copied}
}
