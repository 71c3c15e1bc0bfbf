package dao

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order 排队记录实体
type Order struct {
	QueueNumber     uint64 `gorm:"primaryKey;autoIncrement:false"`
	SubmitterId     string `gorm:"type:varchar(64);uniqueIndex:uk_submitter_request,priority:1"`
	RequestId       string `gorm:"type:varchar(64);uniqueIndex:uk_submitter_request,priority:2"`
	Channel         string `gorm:"type:varchar(16)"`
	DurationMinutes int
	DisplayEndTime  int64
	Price           decimal.Decimal `gorm:"type:decimal(10,2)"`
	FeeWaived       bool
	CreatedAt       int64 `gorm:"autoCreateTime:milli"`
	UpdatedAt       int64 `gorm:"autoUpdateTime:milli"`
}

func (o Order) TableName() string {
	return "signage_order"
}

type OrderDAO interface {
	Insert(ctx context.Context, order Order) error
	// FindLast 返回队列号最大的记录
	FindLast(ctx context.Context) (Order, error)
	FindByQueueNumber(ctx context.Context, queueNumber uint64) (Order, error)
	// FindByRequestId request id 只在同一投稿人内唯一
	FindByRequestId(ctx context.Context, submitterId, requestId string) (Order, error)
}

var _ OrderDAO = (*DefaultOrderDAO)(nil)

type DefaultOrderDAO struct {
	db *gorm.DB
}

func (d *DefaultOrderDAO) Insert(ctx context.Context, order Order) error {
	return d.db.WithContext(ctx).Create(&order).Error
}

func (d *DefaultOrderDAO) FindLast(ctx context.Context) (Order, error) {
	var order Order
	err := d.db.WithContext(ctx).Order("queue_number DESC").First(&order).Error
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (d *DefaultOrderDAO) FindByQueueNumber(ctx context.Context, queueNumber uint64) (Order, error) {
	var order Order
	err := d.db.WithContext(ctx).Where("queue_number = ?", queueNumber).First(&order).Error
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (d *DefaultOrderDAO) FindByRequestId(ctx context.Context, submitterId, requestId string) (Order, error) {
	var order Order
	err := d.db.WithContext(ctx).
		Where("submitter_id = ? AND request_id = ?", submitterId, requestId).
		First(&order).Error
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func NewDefaultOrderDAO(db *gorm.DB) *DefaultOrderDAO {
	return &DefaultOrderDAO{
		db: db,
	}
}
