package controller

import (
	"strings"
	"time"

	"ai_support_backend/internal/model"
	"ai_support_backend/internal/service"
	"ai_support_backend/internal/util"
	"ai_support_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

type TicketController struct {
	TicketService *service.TicketService
	AssistService *service.AssistService
}

func NewTicketController(ticketService *service.TicketService, assistService *service.AssistService) *TicketController {
	return &TicketController{
		TicketService: ticketService,
		AssistService: assistService,
	}
}

// CreateTicketRequest 创建工单请求
// swagger:model CreateTicketRequest
type CreateTicketRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest 发送消息请求
// swagger:model SendMessageRequest
type SendMessageRequest struct {
	TicketID   uint   `json:"ticketId" binding:"required"`
	Content    string `json:"content" binding:"required"`
	SenderType string `json:"senderType"`
}

// UpdateCategoryRequest 更新分类请求
// swagger:model UpdateCategoryRequest
type UpdateCategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// List godoc
// @Summary 工单列表
// @Description 不带 status 参数返回当前用户的工单；status 支持逗号分隔多值（坐席用）
// @Tags 工单
// @Produce  json
// @Security BearerAuth
// @Param   status query string false "状态过滤，逗号分隔"
// @Success 200 {object} util.Response{data=[]model.Ticket}
// @Router /api/tickets [get]
func (c *TicketController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	statusParam := ctx.Query("status")
	var (
		tickets []model.Ticket
		err     error
	)
	if statusParam != "" {
		var statuses []model.TicketStatus
		for _, s := range strings.Split(statusParam, ",") {
			statuses = append(statuses, model.TicketStatus(strings.TrimSpace(s)))
		}
		tickets, err = c.TicketService.ListByStatus(statuses...)
	} else {
		tickets, err = c.TicketService.ListByUser(user.UserID)
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, tickets)
}

// Create godoc
// @Summary 创建工单（对话）
// @Tags 工单
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CreateTicketRequest true "工单信息"
// @Success 201 {object} util.Response{data=model.Ticket}
// @Router /api/tickets [post]
func (c *TicketController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CreateTicketRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ticket, err := c.TicketService.Create(user.UserID, req.Title)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, ticket)
}

// Messages godoc
// @Summary 工单消息列表
// @Tags 工单
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Success 200 {object} util.Response{data=[]model.Message}
// @Failure 404 {object} util.Response
// @Router /api/tickets/{id}/messages [get]
func (c *TicketController) Messages(ctx *gin.Context) {
	messages, err := c.TicketService.Messages(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, messages)
}

// SendMessage godoc
// @Summary 发送消息
// @Description senderType=user 触发 AI 回复；employee 在人工处理中发送；agent 为坐席回复
// @Tags 工单
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body SendMessageRequest true "消息内容"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "状态不允许发送"
// @Router /api/messages [post]
func (c *TicketController) SendMessage(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.SenderType == "" {
		req.SenderType = service.SenderUser
	}

	userMsg, aiMsg, err := c.TicketService.SendMessage(ctx.Request.Context(), req.TicketID, req.SenderType, user.UserID, req.Content)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	if aiMsg != nil {
		util.Success(ctx, gin.H{"user_msg": userMsg, "ai_msg": aiMsg})
		return
	}
	util.Success(ctx, gin.H{"message": userMsg})
}

// Transfer godoc
// @Summary 转接人工
// @Tags 工单
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Success 200 {object} util.Response{data=model.Ticket}
// @Failure 400 {object} util.Response "当前状态无法转人工"
// @Router /api/tickets/{id}/transfer [post]
func (c *TicketController) Transfer(ctx *gin.Context) {
	ticket, err := c.TicketService.TransferToHuman(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, ticket)
}

// Resolve godoc
// @Summary 标记 AI 已解决
// @Tags 工单
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Success 200 {object} util.Response{data=model.Ticket}
// @Router /api/tickets/{id}/resolve [post]
func (c *TicketController) Resolve(ctx *gin.Context) {
	ticket, err := c.TicketService.Resolve(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, ticket)
}

// Accept godoc
// @Summary 坐席接单
// @Description pending → handling 并绑定坐席，并发抢单只有一人成功
// @Tags 工单
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Success 200 {object} util.Response{data=model.Ticket}
// @Failure 409 {object} util.Response "已被其他坐席接走"
// @Router /api/tickets/{id}/accept [post]
func (c *TicketController) Accept(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	ticket, err := c.TicketService.Accept(util.MustParseUint(ctx.Param("id")), user.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, ticket)
}

// Close godoc
// @Summary 坐席结束工单
// @Tags 工单
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Success 200 {object} util.Response{data=model.Ticket}
// @Failure 403 {object} util.Response "非接单坐席"
// @Router /api/tickets/{id}/close [post]
func (c *TicketController) Close(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	ticket, err := c.TicketService.Close(util.MustParseUint(ctx.Param("id")), user.UserID, user.Role)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, ticket)
}

// Assist godoc
// @Summary 坐席智能助手
// @Description 分析对话意图 + 知识库检索 + 推荐回复
// @Tags 工单
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Success 200 {object} util.Response{data=service.AssistResult}
// @Failure 502 {object} util.Response "模型网关不可用"
// @Router /api/tickets/{id}/assist [post]
func (c *TicketController) Assist(ctx *gin.Context) {
	ticketID := util.MustParseUint(ctx.Param("id"))
	messages, err := c.TicketService.Messages(ticketID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if len(messages) == 0 {
		util.BadRequest(ctx, "工单暂无消息")
		return
	}

	start := time.Now()
	result, err := c.AssistService.Assist(ctx.Request.Context(), messages)
	monitoring.AssistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// UpdateCategory godoc
// @Summary 更新工单分类
// @Tags 工单
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "工单 ID"
// @Param   body body UpdateCategoryRequest true "分类"
// @Success 200 {object} util.Response{data=model.Ticket}
// @Router /api/tickets/{id}/category [patch]
func (c *TicketController) UpdateCategory(ctx *gin.Context) {
	var req UpdateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ticket, err := c.TicketService.UpdateCategory(util.MustParseUint(ctx.Param("id")), req.Category)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, ticket)
}
