package controller

import (
	"online_exam_backend/internal/service"
	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CandidateController struct {
	CandidateService  *service.CandidateService
	SubmissionService *service.SubmissionService
}

func NewCandidateController(candidateService *service.CandidateService, submissionService *service.SubmissionService) *CandidateController {
	return &CandidateController{
		CandidateService:  candidateService,
		SubmissionService: submissionService,
	}
}

// CreateCandidateRequest 提供 emails 时按邮箱批量创建，否则创建单个候选人
type CreateCandidateRequest struct {
	service.CandidateReq
	Emails []string `json:"emails"`
}

// ListCandidates godoc
// @Summary 候选人列表
// @Tags 候选人
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Candidate}
// @Router /api/candidates [get]
func (c *CandidateController) ListCandidates(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	candidates, err := c.CandidateService.List(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, candidates)
}

// CreateCandidate godoc
// @Summary 添加候选人
// @Description 单个创建需要 name、email、exam_id；批量创建提供 exam_id 和 emails
// @Tags 候选人
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body CreateCandidateRequest true "候选人信息"
// @Success 201 {object} util.Response{data=model.Candidate}
// @Failure 400 {object} util.ErrorResponse
// @Failure 404 {object} util.ErrorResponse
// @Router /api/candidates [post]
func (c *CandidateController) CreateCandidate(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req CreateCandidateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if req.Emails != nil {
		var examID uint
		if req.ExamID != nil {
			examID = *req.ExamID
		}
		res, err := c.CandidateService.BulkCreate(ctx.Request.Context(), user.UserID, service.BulkCandidateReq{
			ExamID:         examID,
			Emails:         req.Emails,
			SendInvitation: req.SendInvitation,
		})
		if err != nil {
			util.HandleError(ctx, err)
			return
		}
		util.Created(ctx, res)
		return
	}

	candidate, err := c.CandidateService.Create(ctx.Request.Context(), user.UserID, req.CandidateReq)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, candidate)
}

// ListExamCandidates godoc
// @Summary 考试的候选人
// @Tags 候选人
// @Produce json
// @Security ApiKeyAuth
// @Param exam_id path int true "考试ID"
// @Success 200 {object} util.Response{data=[]model.Candidate}
// @Failure 404 {object} util.ErrorResponse
// @Router /api/candidates/exams/{exam_id}/candidates [get]
func (c *CandidateController) ListExamCandidates(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	examID, ok := pathID(ctx, "exam_id")
	if !ok {
		return
	}

	candidates, err := c.CandidateService.ListByExam(ctx.Request.Context(), user.UserID, examID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, candidates)
}

// GetCandidate godoc
// @Summary 候选人详情
// @Tags 候选人
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "候选人ID"
// @Success 200 {object} util.Response{data=model.Candidate}
// @Failure 404 {object} util.ErrorResponse
// @Router /api/candidates/{id} [get]
func (c *CandidateController) GetCandidate(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	candidate, err := c.CandidateService.Get(ctx.Request.Context(), user.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, candidate)
}

// UpdateCandidate godoc
// @Summary 更新候选人
// @Description 已提交结果的候选人不能转到其他考试
// @Tags 候选人
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "候选人ID"
// @Param body body service.CandidateReq true "需要更新的字段"
// @Success 200 {object} util.Response{data=model.Candidate}
// @Failure 400 {object} util.ErrorResponse
// @Failure 404 {object} util.ErrorResponse
// @Failure 409 {object} util.ErrorResponse
// @Router /api/candidates/{id} [put]
func (c *CandidateController) UpdateCandidate(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.CandidateReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	candidate, err := c.CandidateService.Update(ctx.Request.Context(), user.UserID, id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "candidate updated", candidate)
}

// DeleteCandidate godoc
// @Summary 删除候选人
// @Tags 候选人
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "候选人ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.ErrorResponse
// @Failure 409 {object} util.ErrorResponse
// @Router /api/candidates/{id} [delete]
func (c *CandidateController) DeleteCandidate(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.CandidateService.Delete(ctx.Request.Context(), user.UserID, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "candidate deleted", nil)
}

// SendInvitation godoc
// @Summary 发送邀请邮件
// @Tags 候选人
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "候选人ID"
// @Success 200 {object} util.Response{data=model.Candidate}
// @Failure 404 {object} util.ErrorResponse
// @Router /api/candidates/{id}/send-invitation [post]
func (c *CandidateController) SendInvitation(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	candidate, err := c.CandidateService.SendInvitation(ctx.Request.Context(), user.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessWithMessage(ctx, "invitation sent", candidate)
}

// AccessExam godoc
// @Summary 候选人进入考试
// @Description 通过访问链接获取考试题目（不含答案），首次访问开始计时
// @Tags 考生
// @Produce json
// @Param unique_link path string true "访问链接"
// @Success 200 {object} util.Response{data=model.ExamAccess}
// @Failure 403 {object} util.ErrorResponse "考试不可用或已提交"
// @Failure 404 {object} util.ErrorResponse
// @Router /api/candidates/access/{unique_link} [get]
func (c *CandidateController) AccessExam(ctx *gin.Context) {
	access, err := c.CandidateService.AccessExam(ctx.Request.Context(), ctx.Param("unique_link"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, access)
}

// SubmitExam godoc
// @Summary 提交答卷
// @Description answers 的 key 为题目ID；单选/判断为选项ID，多选为选项ID数组，文本题为字符串
// @Tags 考生
// @Accept json
// @Produce json
// @Param unique_link path string true "访问链接"
// @Param body body service.SubmitReq true "答案"
// @Success 201 {object} util.Response{data=model.Result}
// @Failure 400 {object} util.ErrorResponse
// @Failure 403 {object} util.ErrorResponse "已提交"
// @Failure 404 {object} util.ErrorResponse
// @Failure 409 {object} util.ErrorResponse "重复提交"
// @Router /api/candidates/submit/{unique_link} [post]
func (c *CandidateController) SubmitExam(ctx *gin.Context) {
	var req service.SubmitReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubmissionService.Submit(ctx.Request.Context(), ctx.Param("unique_link"), req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, result)
}
