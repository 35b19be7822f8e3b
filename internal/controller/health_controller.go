package controller

import (
	"context"
	"net/http"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/database"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const APIVersion = "1.0.0"

type HealthController struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Mode      string
	StartedAt time.Time
}

// rdb 为 nil 表示未启用 Redis
func NewHealthController(db *gorm.DB, rdb *redis.Client, mode string) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Mode: mode, StartedAt: time.Now()}
}

// Ping godoc
// @Summary 存活检查
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/ping [get]
func (c *HealthController) Ping(ctx *gin.Context) {
	util.Success(ctx, gin.H{"status": "ok"})
}

// @Summary 健康检查
// @Description 检查服务与数据库状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.ErrorResponse
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	// Redis 只影响通知投递，不可用时标记为 degraded
	status, redisState := "ok", "disabled"
	if c.Redis != nil {
		redisState = "up"
		if err := database.PingRedis(pingCtx, c.Redis); err != nil {
			status, redisState = "degraded", "down"
		}
	}

	util.Success(ctx, gin.H{
		"status": status,
		"components": gin.H{
			"database": "up",
			"redis":    redisState,
		},
	})
}

// TestPing godoc
// @Summary 接口连通性测试
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/test/ping [get]
func (c *HealthController) TestPing(ctx *gin.Context) {
	util.SuccessWithMessage(ctx, "API is working correctly", gin.H{"status": "success"})
}

// Version godoc
// @Summary API 版本
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/test/version [get]
func (c *HealthController) Version(ctx *gin.Context) {
	util.Success(ctx, gin.H{"version": APIVersion, "status": "success"})
}

// SystemInfo godoc
// @Summary 系统信息
// @Description 运行环境、数据库连接与各表数量，用于排查问题
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/test/system-info [get]
func (c *HealthController) SystemInfo(ctx *gin.Context) {
	rctx := ctx.Request.Context()
	db := c.DB.WithContext(rctx)

	dialect := db.Dialector.Name()
	database := gin.H{"connected": true, "type": dialect, "version": nil}
	if version, err := databaseVersion(db, dialect); err != nil {
		database["connected"] = false
	} else {
		database["version"] = version
	}

	stats := gin.H{}
	for name, m := range map[string]interface{}{
		"users":      &model.User{},
		"exams":      &model.Exam{},
		"questions":  &model.Question{},
		"candidates": &model.Candidate{},
		"results":    &model.Result{},
	} {
		var count int64
		if err := db.Model(m).Count(&count).Error; err == nil {
			stats[name] = count
		}
	}

	util.Success(ctx, gin.H{
		"go_version":     runtime.Version(),
		"platform":       runtime.GOOS + "/" + runtime.GOARCH,
		"gin_version":    gin.Version,
		"environment":    c.Mode,
		"uptime_seconds": int64(time.Since(c.StartedAt).Seconds()),
		"database":       database,
		"stats":          stats,
	})
}

func databaseVersion(db *gorm.DB, dialect string) (string, error) {
	var query, prefix string
	switch dialect {
	case "sqlite":
		query, prefix = "SELECT sqlite_version()", "SQLite "
	case "postgres":
		query, prefix = "SHOW server_version", "PostgreSQL "
	case "mysql":
		query, prefix = "SELECT VERSION()", "MySQL "
	default:
		return "", db.Exec("SELECT 1").Error
	}

	var version string
	if err := db.Raw(query).Scan(&version).Error; err != nil {
		return "", err
	}
	return prefix + version, nil
}
