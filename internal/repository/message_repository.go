package repository

import (
	"ai_support_backend/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

func (r *MessageRepository) Create(ticketID uint, role model.MessageRole, content string) (*model.Message, error) {
	msg := &model.Message{
		TicketID: ticketID,
		Role:     role,
		Content:  content,
	}
	if err := r.DB.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// ListByTicket 某工单全部消息。created_at 相同时按 id 决出先后，
// 保证回放顺序确定。
func (r *MessageRepository) ListByTicket(ticketID uint) ([]model.Message, error) {
	var messages []model.Message
	err := r.DB.Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// RecentContext 最近 N 条消息（正序返回），用于构建对话上下文
func (r *MessageRepository) RecentContext(ticketID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.DB.Where("ticket_id = ?", ticketID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) CountByTicket(ticketID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Message{}).Where("ticket_id = ?", ticketID).Count(&count).Error
	return count, err
}
