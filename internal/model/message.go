package model

import (
	"time"
)

// MessageRole 消息角色
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAI    MessageRole = "ai"
	RoleAgent MessageRole = "agent"
)

// Message 工单消息。只追加，不允许编辑或删除；
// 按 (created_at, id) 排序保证回放顺序确定。
type Message struct {
	ID        uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketID  uint        `gorm:"not null;index" json:"ticketId"`
	Role      MessageRole `gorm:"size:10;not null" json:"role"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time   `gorm:"index" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
