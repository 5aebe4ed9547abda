package controller

import (
	"io"

	"ai_support_backend/internal/service"
	"ai_support_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type KnowledgeController struct {
	KnowledgeService *service.KnowledgeService
}

func NewKnowledgeController(knowledgeService *service.KnowledgeService) *KnowledgeController {
	return &KnowledgeController{KnowledgeService: knowledgeService}
}

// Upload godoc
// @Summary 上传知识文档
// @Description 仅支持 .md/.txt。上传后立即返回 processing 状态，切片与向量化在后台完成
// @Tags 知识库
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   file formData file true "知识文档"
// @Success 201 {object} util.Response{data=model.KnowledgeDoc}
// @Failure 400 {object} util.Response "文件类型不支持或内容为空"
// @Router /api/knowledge/upload [post]
func (c *KnowledgeController) Upload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	doc, err := c.KnowledgeService.Upload(ctx.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, doc)
}

// List godoc
// @Summary 知识文档列表
// @Tags 知识库
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.KnowledgeDoc}
// @Router /api/knowledge/docs [get]
func (c *KnowledgeController) List(ctx *gin.Context) {
	docs, err := c.KnowledgeService.List(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, docs)
}

// Get godoc
// @Summary 知识文档详情
// @Tags 知识库
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "文档 ID"
// @Success 200 {object} util.Response{data=model.KnowledgeDoc}
// @Failure 404 {object} util.Response
// @Router /api/knowledge/docs/{id} [get]
func (c *KnowledgeController) Get(ctx *gin.Context) {
	doc, err := c.KnowledgeService.Get(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, doc)
}

// Delete godoc
// @Summary 删除知识文档
// @Description 级联删除切片与问答对并同步清理检索索引。重复删除幂等
// @Tags 知识库
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "文档 ID"
// @Success 200 {object} util.Response
// @Router /api/knowledge/docs/{id} [delete]
func (c *KnowledgeController) Delete(ctx *gin.Context) {
	if err := c.KnowledgeService.Delete(ctx.Request.Context(), util.MustParseUint(ctx.Param("id"))); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}
