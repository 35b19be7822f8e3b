package controller

import (
	"fmt"
	"net/http"
	"online_exam_backend/internal/service"
	"online_exam_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	ResultService     *service.ResultService
	EvaluationService *service.EvaluationService
	ExportService     *service.ExportService
}

func NewResultController(resultService *service.ResultService, evaluationService *service.EvaluationService, exportService *service.ExportService) *ResultController {
	return &ResultController{
		ResultService:     resultService,
		EvaluationService: evaluationService,
		ExportService:     exportService,
	}
}

// ListResults godoc
// @Summary 结果列表
// @Tags 结果
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Result}
// @Router /api/results [get]
func (c *ResultController) ListResults(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	results, err := c.ResultService.List(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// ListExamResults godoc
// @Summary 考试的结果
// @Tags 结果
// @Produce json
// @Security ApiKeyAuth
// @Param exam_id path int true "考试ID"
// @Success 200 {object} util.Response{data=[]model.Result}
// @Failure 404 {object} util.ErrorResponse
// @Router /api/results/exams/{exam_id} [get]
func (c *ResultController) ListExamResults(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	examID, ok := pathID(ctx, "exam_id")
	if !ok {
		return
	}

	results, err := c.ResultService.ListByExam(ctx.Request.Context(), user.UserID, examID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// ListCandidateResults godoc
// @Summary 候选人的结果
// @Tags 结果
// @Produce json
// @Security ApiKeyAuth
// @Param candidate_id path int true "候选人ID"
// @Success 200 {object} util.Response{data=[]model.Result}
// @Failure 404 {object} util.ErrorResponse
// @Router /api/results/candidates/{candidate_id} [get]
func (c *ResultController) ListCandidateResults(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	candidateID, ok := pathID(ctx, "candidate_id")
	if !ok {
		return
	}

	results, err := c.ResultService.ListByCandidate(ctx.Request.Context(), user.UserID, candidateID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// GetResult godoc
// @Summary 结果详情
// @Description 包含每道题的作答与得分
// @Tags 结果
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "结果ID"
// @Success 200 {object} util.Response{data=model.ResultDetail}
// @Failure 404 {object} util.ErrorResponse
// @Router /api/results/{id} [get]
func (c *ResultController) GetResult(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	detail, err := c.ResultService.Get(ctx.Request.Context(), user.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// ReviewResult godoc
// @Summary 评阅结果
// @Description 更新评语，可同时给文本题打分
// @Tags 结果
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "结果ID"
// @Param body body service.ReviewReq true "评语与评分"
// @Success 200 {object} util.Response{data=model.Result}
// @Failure 404 {object} util.ErrorResponse
// @Router /api/results/{id}/review [put]
func (c *ResultController) ReviewResult(ctx *gin.Context) {
	c.evaluate(ctx, false)
}

// EvaluateResult godoc
// @Summary 人工评分
// @Description 给文本题打分，分数限制在 0 到题目分值之间，随后重新计算总分
// @Tags 结果
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "结果ID"
// @Param body body service.ReviewReq true "评分列表"
// @Success 200 {object} util.Response{data=model.Result}
// @Failure 400 {object} util.ErrorResponse "缺少 evaluations"
// @Failure 404 {object} util.ErrorResponse
// @Router /api/results/{id}/evaluate [put]
func (c *ResultController) EvaluateResult(ctx *gin.Context) {
	c.evaluate(ctx, true)
}

func (c *ResultController) evaluate(ctx *gin.Context, requireEvaluations bool) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.ReviewReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.EvaluationService.Evaluate(ctx.Request.Context(), user.UserID, id, req, requireEvaluations)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "result updated", result)
}

// ExportResult godoc
// @Summary 导出结果
// @Description 支持 csv 和 json；archive=true 时上传到存储并返回地址
// @Tags 结果
// @Produce json
// @Produce text/csv
// @Security ApiKeyAuth
// @Param id path int true "结果ID"
// @Param format query string false "csv 或 json" default(csv)
// @Param archive query bool false "是否归档到存储"
// @Success 200 {file} file
// @Failure 400 {object} util.ErrorResponse
// @Failure 404 {object} util.ErrorResponse
// @Failure 501 {object} util.ErrorResponse
// @Router /api/results/{id}/export [get]
func (c *ResultController) ExportResult(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	archive, _ := strconv.ParseBool(ctx.DefaultQuery("archive", "false"))

	file, err := c.ExportService.Export(ctx.Request.Context(), user.UserID, id, ctx.DefaultQuery("format", util.ExportCSV), archive)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	if archive {
		util.Success(ctx, file)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	ctx.Data(http.StatusOK, file.ContentType, file.Data)
}

// DownloadArchivedExport godoc
// @Summary 下载已归档的导出文件
// @Description 地址来自 archive=true 的导出响应，仅考试创建者可下载
// @Tags 结果
// @Produce text/csv
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "结果ID"
// @Param filename path string true "导出文件名"
// @Success 200 {file} file
// @Failure 401 {object} util.ErrorResponse
// @Failure 404 {object} util.ErrorResponse
// @Router /api/results/{id}/exports/{filename} [get]
func (c *ResultController) DownloadArchivedExport(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	file, err := c.ExportService.Archived(ctx.Request.Context(), user.UserID, id, ctx.Param("filename"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	ctx.Data(http.StatusOK, file.ContentType, file.Data)
}
