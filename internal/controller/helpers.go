package controller

import (
	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// currentUser 读取认证中间件写入的用户，缺失时已写出 401
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}

// pathID 解析路径中的 ID，失败时已写出 400
func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := util.ParamUint(ctx, name)
	if err != nil {
		util.HandleError(ctx, err)
		return 0, false
	}
	return id, true
}
