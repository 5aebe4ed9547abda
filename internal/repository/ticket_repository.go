package repository

import (
	"ai_support_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type TicketRepository struct {
	DB *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{DB: db}
}

func (r *TicketRepository) Create(ticket *model.Ticket) error {
	return r.DB.Create(ticket).Error
}

func (r *TicketRepository) FindByID(id uint) (*model.Ticket, error) {
	var ticket model.Ticket
	err := r.DB.First(&ticket, id).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListByUser 某用户的全部工单（按更新时间倒序）
func (r *TicketRepository) ListByUser(userID uint) ([]model.Ticket, error) {
	var tickets []model.Ticket
	err := r.DB.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&tickets).Error
	return tickets, err
}

// ListByStatus 按状态筛选工单
func (r *TicketRepository) ListByStatus(statuses ...model.TicketStatus) ([]model.Ticket, error) {
	var tickets []model.Ticket
	err := r.DB.Where("status IN ?", statuses).
		Order("updated_at DESC").
		Find(&tickets).Error
	return tickets, err
}

// UpdateStatusCAS 以当前状态为守卫条件做原子状态变更，
// 返回 false 表示守卫失败（状态已被并发修改），由调用方判定冲突。
// agentID 非空时与状态变更一起写入，保证接单绑定的原子性。
func (r *TicketRepository) UpdateStatusCAS(id uint, from, to model.TicketStatus, agentID *uint) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if agentID != nil {
		updates["agent_id"] = *agentID
	}
	// closed_at 只在进入 resolved/closed 时写入一次，reviewed 不再触碰
	if to == model.StatusResolved || to == model.StatusClosed {
		updates["closed_at"] = time.Now()
	}

	res := r.DB.Model(&model.Ticket{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TicketRepository) UpdateCategory(id uint, category string) (bool, error) {
	res := r.DB.Model(&model.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"category": category, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *TicketRepository) UpdateTitle(id uint, title string) error {
	return r.DB.Model(&model.Ticket{}).
		Where("id = ?", id).
		Update("title", title).Error
}
