package service

import (
	"context"
	"strings"

	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 发送方类型：user 在 AI 对话中发送并触发 AI 回复；
// employee 在人工处理中发送（不触发 AI）；agent 为坐席回复
const (
	SenderUser     = "user"
	SenderEmployee = "employee"
	SenderAgent    = "agent"
)

const aiUnavailableReply = "抱歉，AI 服务暂时不可用，请稍后重试或转接人工客服。"

// TicketService 工单状态机与对话编排。
// 所有状态变更走带守卫的原子更新，并发竞争时败者拿到 ErrConflict。
type TicketService struct {
	tickets  *repository.TicketRepository
	messages *repository.MessageRepository
	engine   *AIEngine
	logger   *zap.Logger
}

func NewTicketService(
	tickets *repository.TicketRepository,
	messages *repository.MessageRepository,
	engine *AIEngine,
	logger *zap.Logger,
) *TicketService {
	return &TicketService{
		tickets:  tickets,
		messages: messages,
		engine:   engine,
		logger:   logger,
	}
}

// Create 创建新工单（对话），初始状态 chatting
func (s *TicketService) Create(userID uint, title string) (*model.Ticket, error) {
	if strings.TrimSpace(title) == "" {
		title = "新对话"
	}
	ticket := &model.Ticket{
		Title:  title,
		Status: model.StatusChatting,
		UserID: userID,
	}
	if err := s.tickets.Create(ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) Get(ticketID uint) (*model.Ticket, error) {
	ticket, err := s.tickets.FindByID(ticketID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) ListByUser(userID uint) ([]model.Ticket, error) {
	return s.tickets.ListByUser(userID)
}

func (s *TicketService) ListByStatus(statuses ...model.TicketStatus) ([]model.Ticket, error) {
	return s.tickets.ListByStatus(statuses...)
}

// Messages 工单消息回放，按 (created_at, id) 正序
func (s *TicketService) Messages(ticketID uint) ([]model.Message, error) {
	if _, err := s.Get(ticketID); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ticketID)
}

// SendMessage 发送消息。user 在 chatting 中发送时同步触发 AI 回复，
// 返回 (用户消息, AI 消息)；其余发送方式 AI 消息为 nil。
func (s *TicketService) SendMessage(ctx context.Context, ticketID uint, senderType string, actorID uint, content string) (*model.Message, *model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, util.ErrValidation
	}

	ticket, err := s.Get(ticketID)
	if err != nil {
		return nil, nil, err
	}

	// 发送资格由状态推导，角色再各自收紧
	if !ticket.Status.AllowsMessage() {
		return nil, nil, util.ErrInvalidTransition
	}

	switch senderType {
	case SenderAgent:
		if ticket.Status != model.StatusHandling {
			return nil, nil, util.ErrInvalidTransition
		}
		if ticket.AgentID == nil || *ticket.AgentID != actorID {
			return nil, nil, util.ErrForbidden
		}
		msg, err := s.messages.Create(ticketID, model.RoleAgent, content)
		return msg, nil, err

	case SenderEmployee:
		if ticket.Status != model.StatusHandling {
			return nil, nil, util.ErrInvalidTransition
		}
		msg, err := s.messages.Create(ticketID, model.RoleUser, content)
		return msg, nil, err

	case SenderUser:
		if ticket.Status != model.StatusChatting {
			return nil, nil, util.ErrInvalidTransition
		}
		return s.sendUserMessageWithAIReply(ctx, ticket, content)

	default:
		return nil, nil, util.ErrValidation
	}
}

func (s *TicketService) sendUserMessageWithAIReply(ctx context.Context, ticket *model.Ticket, content string) (*model.Message, *model.Message, error) {
	userMsg, err := s.messages.Create(ticket.ID, model.RoleUser, content)
	if err != nil {
		return nil, nil, err
	}

	// 首条消息时用其内容更新工单标题
	count, err := s.messages.CountByTicket(ticket.ID)
	if err == nil && count <= 1 {
		title := content
		if runes := []rune(title); len(runes) > 50 {
			title = string(runes[:50]) + "..."
		}
		if err := s.tickets.UpdateTitle(ticket.ID, title); err != nil {
			s.logger.Warn("更新工单标题失败", zap.Uint("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	history, err := s.messages.RecentContext(ticket.ID, 10)
	if err != nil {
		s.logger.Warn("加载对话历史失败", zap.Uint("ticket_id", ticket.ID), zap.Error(err))
	}

	// AI 回复失败不阻断对话，落一条兜底提示引导用户转人工
	reply, err := s.engine.Reply(ctx, content, history)
	if err != nil {
		s.logger.Error("AI 引擎调用失败", zap.Uint("ticket_id", ticket.ID), zap.Error(err))
		reply = aiUnavailableReply
	}

	aiMsg, err := s.messages.Create(ticket.ID, model.RoleAI, reply)
	if err != nil {
		return userMsg, nil, err
	}
	return userMsg, aiMsg, nil
}

// TransferToHuman 转接人工：chatting → pending，并落一条系统提示
func (s *TicketService) TransferToHuman(ticketID uint) (*model.Ticket, error) {
	ticket, err := s.transition(ticketID, model.StatusChatting, model.StatusPending, nil)
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.Create(ticketID, model.RoleAI, "已转接人工客服，请等待坐席接入..."); err != nil {
		s.logger.Warn("写入转接提示消息失败", zap.Uint("ticket_id", ticketID), zap.Error(err))
	}
	return ticket, nil
}

// Resolve 员工确认 AI 已解决：chatting → resolved
func (s *TicketService) Resolve(ticketID uint) (*model.Ticket, error) {
	return s.transition(ticketID, model.StatusChatting, model.StatusResolved, nil)
}

// Accept 坐席接单：pending → handling 并绑定坐席。
// 多个坐席抢同一单时只有一人成功，其余拿到 ErrConflict。
func (s *TicketService) Accept(ticketID, agentID uint) (*model.Ticket, error) {
	return s.transition(ticketID, model.StatusPending, model.StatusHandling, &agentID)
}

// Close 坐席结束工单：handling → closed。仅接单坐席或管理员可操作
func (s *TicketService) Close(ticketID, actorID uint, role model.UserRole) (*model.Ticket, error) {
	ticket, err := s.Get(ticketID)
	if err != nil {
		return nil, err
	}
	if role != model.Admin {
		if ticket.AgentID == nil || *ticket.AgentID != actorID {
			return nil, util.ErrForbidden
		}
	}

	closed, err := s.transition(ticketID, model.StatusHandling, model.StatusClosed, nil)
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.Create(ticketID, model.RoleAI, "工单已由坐席关闭。"); err != nil {
		s.logger.Warn("写入关闭提示消息失败", zap.Uint("ticket_id", ticketID), zap.Error(err))
	}
	return closed, nil
}

func (s *TicketService) UpdateCategory(ticketID uint, category string) (*model.Ticket, error) {
	if strings.TrimSpace(category) == "" {
		return nil, util.ErrValidation
	}
	found, err := s.tickets.UpdateCategory(ticketID, category)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, util.ErrNotFound
	}
	return s.Get(ticketID)
}

// transition 执行一次带守卫的状态变更。
// (from, to) 先查转移表，再比对当前状态，最后靠 CAS 守卫并发：
// 状态不符或不在表内判非法变更，CAS 失败判并发冲突。
func (s *TicketService) transition(ticketID uint, from, to model.TicketStatus, agentID *uint) (*model.Ticket, error) {
	ticket, err := s.Get(ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != from || !from.CanTransitionTo(to) {
		return nil, util.ErrInvalidTransition
	}

	ok, err := s.tickets.UpdateStatusCAS(ticketID, from, to, agentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 读到的状态还满足条件，但更新时已被别人抢先
		return nil, util.ErrConflict
	}

	s.logger.Info("工单状态变更",
		zap.Uint("ticket_id", ticketID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return s.Get(ticketID)
}
