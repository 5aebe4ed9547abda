package controller

import (
	"net/http"

	"ai_support_backend/internal/service"
	"ai_support_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Index *service.VectorIndex
}

func NewHealthController(db *gorm.DB, index *service.VectorIndex) *HealthController {
	return &HealthController{DB: db, Index: index}
}

// @Summary 健康检查
// @Description 检查数据库连接与向量索引状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"vector_index": gin.H{
				"chunks":       c.Index.Count(service.NamespaceChunks),
				"qa_questions": c.Index.Count(service.NamespaceQAQuestions),
			},
		},
	})
}
