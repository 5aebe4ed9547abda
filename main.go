// @title AI 智能客服后端 API
// @version 1.0
// @description AI-first 智能客服系统的后端服务器，提供知识库检索、AI 对话、工单流转与质检能力。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"ai_support_backend/internal/app"
	"ai_support_backend/internal/config"
	"ai_support_backend/pkg/configwatcher"
	"ai_support_backend/pkg/logger"
	"flag"
	"log"
	"path/filepath"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 监听配置文件，热更新检索与入库参数
	go configwatcher.WatchConfig(filepath.Join(*configDir, "config.yaml"), application.ApplyConfig)

	application.Run()
}
