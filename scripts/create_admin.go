// 创建管理员账号脚本
//
// 首次部署后运行一次，创建质检/知识库管理用的 admin 账号。
// 邮箱已存在时直接退出，不会覆盖已有账号。
//
// 用法: go run scripts/create_admin.go -email admin@example.com -password xxx
package main

import (
	"ai_support_backend/internal/config"
	"ai_support_backend/internal/model"
	"ai_support_backend/internal/repository"
	"ai_support_backend/internal/service"
	"ai_support_backend/pkg/database"
	"ai_support_backend/pkg/logger"
	"flag"
	"log"
)

func main() {
	email := flag.String("email", "", "管理员邮箱")
	password := flag.String("password", "", "初始密码")
	name := flag.String("name", "管理员", "显示名称")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("用法: go run scripts/create_admin.go -email admin@example.com -password xxx")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	auth := service.NewAuthService(repository.NewUserRepository(db), cfg)
	user := &model.User{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     model.Admin,
	}
	if err := auth.Register(user); err != nil {
		log.Fatalf("创建管理员失败: %v", err)
	}

	log.Printf("管理员账号已创建: %s (id=%d)", user.Email, user.ID)
}
