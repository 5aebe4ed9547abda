package controller

import (
	"ai_support_backend/internal/service"
	"ai_support_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QCController struct {
	QCService *service.QCService
}

func NewQCController(qcService *service.QCService) *QCController {
	return &QCController{QCService: qcService}
}

// SubmitReviewRequest 质检评分请求，三个维度各 1-5 分
// swagger:model SubmitReviewRequest
type SubmitReviewRequest struct {
	AccuracyScore   int    `json:"accuracyScore" binding:"required,min=1,max=5"`
	ComplianceScore int    `json:"complianceScore" binding:"required,min=1,max=5"`
	ResolutionScore int    `json:"resolutionScore" binding:"required,min=1,max=5"`
	Comment         string `json:"comment"`
}

// ListPending godoc
// @Summary 待质检工单列表
// @Tags 质检
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Ticket}
// @Router /api/qc/pending [get]
func (c *QCController) ListPending(ctx *gin.Context) {
	tickets, err := c.QCService.ListPending()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, tickets)
}

// Submit godoc
// @Summary 提交质检结果
// @Description closed → reviewed，状态变更与结果落库在同一事务内，一个工单只能质检一次
// @Tags 质检
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Param   body body SubmitReviewRequest true "评分"
// @Success 201 {object} util.Response{data=model.QCResult}
// @Failure 400 {object} util.Response "工单不在可质检状态"
// @Failure 409 {object} util.Response "并发质检冲突"
// @Router /api/qc/tickets/{id}/review [post]
func (c *QCController) Submit(ctx *gin.Context) {
	var req SubmitReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.QCService.Submit(
		util.MustParseUint(ctx.Param("id")),
		req.AccuracyScore, req.ComplianceScore, req.ResolutionScore,
		req.Comment)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// GetResult godoc
// @Summary 查询工单质检结果
// @Tags 质检
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Success 200 {object} util.Response{data=model.QCResult}
// @Failure 404 {object} util.Response
// @Router /api/qc/tickets/{id}/result [get]
func (c *QCController) GetResult(ctx *gin.Context) {
	result, err := c.QCService.GetByTicket(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListResults godoc
// @Summary 质检结果列表
// @Tags 质检
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.QCResult}
// @Router /api/qc/results [get]
func (c *QCController) ListResults(ctx *gin.Context) {
	results, err := c.QCService.ListResults()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, results)
}
