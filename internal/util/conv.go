package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParamUint 读取路径参数中的 ID，非正整数视为 400
func ParamUint(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, Validationf("invalid %s", name)
	}
	return uint(id), nil
}

// QueryUint 读取可选查询参数，缺省返回 0
func QueryUint(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, Validationf("invalid %s", name)
	}
	return uint(id), nil
}
