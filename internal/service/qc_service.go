package service

import (
	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QCService 工单质检。三个维度各 1-5 分，总分取算术平均。
// 评审提交与 closed → reviewed 的状态变更在同一事务里完成，
// 一个工单只能质检一次。
type QCService struct {
	qc      *repository.QCRepository
	tickets *repository.TicketRepository
	logger  *zap.Logger
}

func NewQCService(qc *repository.QCRepository, tickets *repository.TicketRepository, logger *zap.Logger) *QCService {
	return &QCService{qc: qc, tickets: tickets, logger: logger}
}

// Submit 提交质检结果
func (s *QCService) Submit(ticketID uint, accuracy, compliance, resolution int, comment string) (*model.QCResult, error) {
	for _, score := range []int{accuracy, compliance, resolution} {
		if score < 1 || score > 5 {
			return nil, util.ErrValidation
		}
	}

	ticket, err := s.tickets.FindByID(ticketID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	if ticket.Status != model.StatusClosed {
		return nil, util.ErrInvalidTransition
	}

	result := &model.QCResult{
		TicketID:        ticketID,
		AccuracyScore:   accuracy,
		ComplianceScore: compliance,
		ResolutionScore: resolution,
		TotalScore:      float64(accuracy+compliance+resolution) / 3,
		Comment:         comment,
	}

	transitioned, err := s.qc.SubmitReview(ticketID, result)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// 读时还是 closed，提交时已被并发质检抢先
		return nil, util.ErrConflict
	}

	s.logger.Info("质检结果已提交",
		zap.Uint("ticket_id", ticketID),
		zap.Float64("total_score", result.TotalScore))
	return result, nil
}

func (s *QCService) GetByTicket(ticketID uint) (*model.QCResult, error) {
	result, err := s.qc.FindByTicket(ticketID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return result, nil
}

// ListPending 待质检工单（已关闭未评审）
func (s *QCService) ListPending() ([]model.Ticket, error) {
	return s.tickets.ListByStatus(model.StatusClosed)
}

func (s *QCService) ListResults() ([]model.QCResult, error) {
	return s.qc.ListResults()
}
