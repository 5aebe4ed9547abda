package repository

import (
	"ai_support_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type QCRepository struct {
	DB *gorm.DB
}

func NewQCRepository(db *gorm.DB) *QCRepository {
	return &QCRepository{DB: db}
}

// SubmitReview 在同一事务中完成 closed → reviewed 的状态变更与质检结果落库。
// 状态守卫失败返回 transitioned=false；ticket_id 唯一索引兜底并发重复提交。
func (r *QCRepository) SubmitReview(ticketID uint, result *model.QCResult) (transitioned bool, err error) {
	err = r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Ticket{}).
			Where("id = ? AND status = ?", ticketID, model.StatusClosed).
			Updates(map[string]interface{}{
				"status":     model.StatusReviewed,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		transitioned = true
		return tx.Create(result).Error
	})
	return
}

func (r *QCRepository) FindByTicket(ticketID uint) (*model.QCResult, error) {
	var result model.QCResult
	err := r.DB.Where("ticket_id = ?", ticketID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListReviewed 已质检工单及结果
func (r *QCRepository) ListResults() ([]model.QCResult, error) {
	var results []model.QCResult
	err := r.DB.Order("created_at DESC").Find(&results).Error
	return results, err
}
