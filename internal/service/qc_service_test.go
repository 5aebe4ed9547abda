package service

import (
	"testing"

	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testQCService(t *testing.T, db *gorm.DB) (*QCService, *repository.TicketRepository) {
	t.Helper()
	tickets := repository.NewTicketRepository(db)
	return NewQCService(repository.NewQCRepository(db), tickets, zap.NewNop()), tickets
}

func seedClosedTicket(t *testing.T, tickets *repository.TicketRepository) *model.Ticket {
	t.Helper()
	ticket := &model.Ticket{Title: "新对话", Status: model.StatusClosed, UserID: 1}
	require.NoError(t, tickets.Create(ticket))
	return ticket
}

func TestQCSubmit(t *testing.T) {
	db := newTestDB(t)
	svc, tickets := testQCService(t, db)
	ticket := seedClosedTicket(t, tickets)

	result, err := svc.Submit(ticket.ID, 5, 4, 3, "整体表现良好")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, result.TotalScore, 1e-9)

	// 状态变更与结果落库同时生效
	updated, err := tickets.FindByID(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReviewed, updated.Status)

	saved, err := svc.GetByTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, saved.AccuracyScore)
	assert.Equal(t, "整体表现良好", saved.Comment)
}

func TestQCSubmitScoreValidation(t *testing.T) {
	db := newTestDB(t)
	svc, tickets := testQCService(t, db)
	ticket := seedClosedTicket(t, tickets)

	_, err := svc.Submit(ticket.ID, 0, 3, 3, "")
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = svc.Submit(ticket.ID, 3, 6, 3, "")
	assert.ErrorIs(t, err, util.ErrValidation)

	// 校验失败不产生任何写入
	updated, _ := tickets.FindByID(ticket.ID)
	assert.Equal(t, model.StatusClosed, updated.Status)
}

func TestQCSubmitOnlyClosedTickets(t *testing.T) {
	db := newTestDB(t)
	svc, tickets := testQCService(t, db)

	for _, status := range []model.TicketStatus{
		model.StatusChatting, model.StatusPending,
		model.StatusHandling, model.StatusResolved,
	} {
		ticket := &model.Ticket{Title: "新对话", Status: status, UserID: 1}
		require.NoError(t, tickets.Create(ticket))
		_, err := svc.Submit(ticket.ID, 3, 3, 3, "")
		assert.ErrorIs(t, err, util.ErrInvalidTransition, "status %s", status)
	}

	_, err := svc.Submit(99999, 3, 3, 3, "")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestQCSubmitTwiceRejected(t *testing.T) {
	db := newTestDB(t)
	svc, tickets := testQCService(t, db)
	ticket := seedClosedTicket(t, tickets)

	_, err := svc.Submit(ticket.ID, 4, 4, 4, "第一次")
	require.NoError(t, err)

	// 已是 reviewed，再次提交是非法变更
	_, err = svc.Submit(ticket.ID, 5, 5, 5, "第二次")
	assert.ErrorIs(t, err, util.ErrInvalidTransition)

	// 第一次的结果保持不变
	saved, err := svc.GetByTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "第一次", saved.Comment)
}

func TestQCListPending(t *testing.T) {
	db := newTestDB(t)
	svc, tickets := testQCService(t, db)

	seedClosedTicket(t, tickets)
	open := &model.Ticket{Title: "新对话", Status: model.StatusChatting, UserID: 1}
	require.NoError(t, tickets.Create(open))

	pending, err := svc.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.StatusClosed, pending[0].Status)
}
