package controller

import (
	"tryout_backend/internal/service"
	"tryout_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AttemptController 学生端答题
type AttemptController struct {
	TryoutService  *service.TryoutService
	AttemptService *service.AttemptService
}

func NewAttemptController(tryoutSvc *service.TryoutService, attemptSvc *service.AttemptService) *AttemptController {
	return &AttemptController{TryoutService: tryoutSvc, AttemptService: attemptSvc}
}

// @Summary 获取可参加的试卷列表
// @Tags 答题模块
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/tryouts [get]
func (c *AttemptController) ListTryouts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	tryouts, err := c.TryoutService.ListForStudent(user.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, tryouts)
}

// @Summary 获取试卷答题页（题目不含答案，带剩余秒数）
// @Tags 答题模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/tryouts/{id} [get]
func (c *AttemptController) GetTryoutDetail(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.TryoutService.GetStudentDetail(user.UserID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}

// @Summary 开始答题（已有未交卷尝试时续答）
// @Tags 答题模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 201 {object} util.Response
// @Router /api/tryouts/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.AttemptService.StartAttempt(user.UserID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Created(ctx, attempt)
}

// @Summary 获取自己在某试卷下的全部尝试
// @Tags 答题模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/tryouts/{id}/attempts [get]
func (c *AttemptController) ListMyAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.AttemptService.GetUserAttempts(user.UserID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, attempts)
}

// @Summary 获取当前未交卷的尝试（没有则返回 null）
// @Tags 答题模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/tryouts/{id}/attempts/active [get]
func (c *AttemptController) GetActiveAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.AttemptService.GetActiveAttempt(user.UserID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, attempt)
}

type answerReq struct {
	QuestionID string `json:"questionId" binding:"required"`
	// 选择题为选项ID（多选为 JSON 数组字符串），主观题为文本
	Value string `json:"value" binding:"required"`
}

// @Summary 保存单题作答（同题重复提交覆盖旧值）
// @Tags 答题模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "答卷ID"
// @Param body body controller.answerReq true "作答内容"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers [put]
func (c *AttemptController) SubmitAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req answerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.AttemptService.SubmitAnswer(user.UserID, ctx.Param("id"), req.QuestionID, req.Value)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, answer)
}

// @Summary 交卷并计分（重复交卷幂等）
// @Tags 答题模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "答卷ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/complete [post]
func (c *AttemptController) CompleteAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.AttemptService.CompleteAttempt(user.UserID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, attempt)
}

// @Summary 获取成绩单（仅限已交卷）
// @Tags 答题模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "答卷ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/results [get]
func (c *AttemptController) GetResults(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.AttemptService.GetAttemptResults(user.UserID, ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
