// 创建或提升管理员账号
//
// 邮箱已注册时直接提升为管理员，否则按给定的用户名和密码新建。
//
// 用法: go run scripts/create_admin.go -email admin@example.com -username admin -password secret

package main

import (
	"context"
	"flag"
	"log"
	"online_exam_backend/internal/config"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/service"
	"online_exam_backend/pkg/database"
	"online_exam_backend/pkg/logger"
)

func main() {
	email := flag.String("email", "", "管理员邮箱")
	username := flag.String("username", "admin", "用户名（新建账号时使用）")
	password := flag.String("password", "", "密码（新建账号时使用）")
	flag.Parse()

	if *email == "" {
		log.Fatal("必须提供 -email")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	authService := service.NewAuthService(repository.NewUserRepository(db), cfg)
	user, err := authService.CreateAdmin(context.Background(), service.RegisterReq{
		Email:    *email,
		Username: *username,
		Password: *password,
	})
	if err != nil {
		log.Fatalf("创建管理员失败: %v", err)
	}

	log.Printf("管理员已就绪: id=%d email=%s username=%s", user.ID, user.Email, user.Username)
}
