package app

import (
	"ai_support_backend/docs"
	"ai_support_backend/internal/config"
	"ai_support_backend/internal/middleware"
	"ai_support_backend/internal/model"

	"ai_support_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/me", c.auth.Me)

		// 工单与对话：员工、坐席均可访问
		authGroup.GET("/tickets", c.ticket.List)
		authGroup.POST("/tickets", c.ticket.Create)
		authGroup.GET("/tickets/:id/messages", c.ticket.Messages)
		authGroup.POST("/messages", c.ticket.SendMessage)
		authGroup.POST("/tickets/:id/transfer", c.ticket.Transfer)
		authGroup.POST("/tickets/:id/resolve", c.ticket.Resolve)
		authGroup.PATCH("/tickets/:id/category", c.ticket.UpdateCategory)

		// 坐席操作
		agentGroup := authGroup.Group("")
		agentGroup.Use(middleware.RoleMiddleware(model.Agent))
		{
			agentGroup.POST("/tickets/:id/accept", c.ticket.Accept)
			agentGroup.POST("/tickets/:id/close", c.ticket.Close)
			agentGroup.POST("/tickets/:id/assist", c.ticket.Assist)
		}

		// 知识库管理：仅管理员
		knowledgeGroup := authGroup.Group("/knowledge")
		knowledgeGroup.Use(middleware.RoleMiddleware(model.Admin))
		{
			knowledgeGroup.POST("/upload", c.knowledge.Upload)
			knowledgeGroup.GET("/docs", c.knowledge.List)
			knowledgeGroup.GET("/docs/:id", c.knowledge.Get)
			knowledgeGroup.DELETE("/docs/:id", c.knowledge.Delete)
		}

		// 质检：仅管理员
		qcGroup := authGroup.Group("/qc")
		qcGroup.Use(middleware.RoleMiddleware(model.Admin))
		{
			qcGroup.GET("/pending", c.qc.ListPending)
			qcGroup.POST("/tickets/:id/review", c.qc.Submit)
			qcGroup.GET("/tickets/:id/result", c.qc.GetResult)
			qcGroup.GET("/results", c.qc.ListResults)
		}
	}
}
