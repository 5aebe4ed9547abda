package model

import (
	"time"
)

// TicketStatus 工单状态
type TicketStatus string

const (
	StatusChatting TicketStatus = "chatting" // AI 对话中
	StatusPending  TicketStatus = "pending"  // 待人工接入
	StatusHandling TicketStatus = "handling" // 坐席处理中
	StatusResolved TicketStatus = "resolved" // AI 已解决
	StatusClosed   TicketStatus = "closed"   // 坐席完结
	StatusReviewed TicketStatus = "reviewed" // 已质检（终态）
)

// ticketTransitions 状态机转移表。不在表内的 (from, to) 一律非法，
// 校验失败不产生任何部分修改。角色约束由 TicketService 另行把关。
var ticketTransitions = map[TicketStatus][]TicketStatus{
	StatusChatting: {StatusPending, StatusResolved},
	StatusPending:  {StatusHandling},
	StatusHandling: {StatusClosed},
	StatusClosed:   {StatusReviewed},
}

// CanTransitionTo 查转移表判断状态变更是否合法
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	for _, t := range ticketTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// AllowsMessage 消息发送资格由状态推导：
// chatting 允许员工发送（触发 AI 回复），handling 允许员工与坐席直接对话，
// 其余状态（含 resolved/closed/reviewed 终态）一律拒绝。
func (s TicketStatus) AllowsMessage() bool {
	return s == StatusChatting || s == StatusHandling
}

// swagger:model Ticket
type Ticket struct {
	BaseModel
	Title    string       `gorm:"size:200;not null;default:'新对话'" json:"title"`
	Status   TicketStatus `gorm:"size:20;not null;default:'chatting';index" json:"status"`
	UserID   uint         `gorm:"not null;index" json:"userId"`
	AgentID  *uint        `gorm:"index" json:"agentId"` // 进入 handling 时绑定，之后不再变更
	Category string       `gorm:"size:50" json:"category"`
	Summary  string       `gorm:"type:text" json:"summary"`
	ClosedAt *time.Time   `json:"closedAt"` // 进入 resolved/closed 时写入一次
}

func (Ticket) TableName() string {
	return "tickets"
}
