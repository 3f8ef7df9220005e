package controller

import (
	"strconv"

	"tryout_backend/internal/service"
	"tryout_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// TryoutController 教师端试卷管理
type TryoutController struct {
	Service *service.TryoutService
}

func NewTryoutController(svc *service.TryoutService) *TryoutController {
	return &TryoutController{Service: svc}
}

// @Summary 创建试卷
// @Tags 试卷管理模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.TryoutReq true "试卷信息"
// @Success 201 {object} util.Response
// @Router /api/teacher/tryouts [post]
func (c *TryoutController) CreateTryout(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.TryoutReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	tryout, err := c.Service.CreateTryout(user.UserID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Created(ctx, tryout)
}

// @Summary 获取课程下的试卷列表
// @Tags 试卷管理模块
// @Produce json
// @Security BearerAuth
// @Param courseId query int true "课程ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/teacher/tryouts [get]
func (c *TryoutController) ListTryouts(ctx *gin.Context) {
	courseID, err := util.ParseID(ctx.Query("courseId"))
	if err != nil {
		util.BadRequest(ctx, "courseId "+err.Error())
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.Service.ListTryouts(courseID, page, limit)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}

// @Summary 获取试卷详情（含题目与选项）
// @Tags 试卷管理模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/tryouts/{id} [get]
func (c *TryoutController) GetTryout(ctx *gin.Context) {
	id := ctx.Param("id")

	tryout, questions, options, err := c.Service.GetTryout(id)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"tryout": tryout, "questions": questions, "options": options})
}

// @Summary 更新试卷（题目按 ID 增删改）
// @Tags 试卷管理模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body service.TryoutReq true "试卷信息"
// @Success 200 {object} util.Response
// @Router /api/teacher/tryouts/{id} [put]
func (c *TryoutController) UpdateTryout(ctx *gin.Context) {
	id := ctx.Param("id")

	var req service.TryoutReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	tryout, err := c.Service.UpdateTryout(id, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, tryout)
}

// @Summary 删除试卷（级联删除题目、选项与答卷）
// @Tags 试卷管理模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/tryouts/{id} [delete]
func (c *TryoutController) DeleteTryout(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.Service.DeleteTryout(id); err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": true})
}

type publishReq struct {
	Publish bool `json:"publish"`
}

// @Summary 发布/下架试卷
// @Tags 试卷管理模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body controller.publishReq true "发布状态"
// @Success 200 {object} util.Response
// @Router /api/teacher/tryouts/{id}/publish [put]
func (c *TryoutController) PublishTryout(ctx *gin.Context) {
	id := ctx.Param("id")

	var req publishReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	tryout, err := c.Service.Publish(id, req.Publish)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, tryout)
}

// @Summary 获取试卷的答卷列表
// @Tags 试卷管理模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param student query string false "按学生姓名过滤"
// @Success 200 {object} util.Response
// @Router /api/teacher/tryouts/{id}/attempts [get]
func (c *TryoutController) ListAttempts(ctx *gin.Context) {
	id := ctx.Param("id")
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	student := ctx.Query("student")

	rows, total, err := c.Service.ListAttempts(id, page, limit, student)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}

// @Summary 获取答卷详情（教师视角，含正确答案）
// @Tags 试卷管理模块
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "答卷ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{attemptId} [get]
func (c *TryoutController) GetAttemptDetail(ctx *gin.Context) {
	attemptID := ctx.Param("attemptId")

	detail, err := c.Service.GetAttemptDetail(attemptID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}

// @Summary 重置答卷（删除后学生可重考）
// @Tags 试卷管理模块
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "答卷ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{attemptId} [delete]
func (c *TryoutController) ResetAttempt(ctx *gin.Context) {
	attemptID := ctx.Param("attemptId")

	if err := c.Service.ResetAttempt(attemptID); err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"reset": true})
}

// @Summary 获取试卷统计（答卷数、完成数、平均分、最高分）
// @Tags 试卷管理模块
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/tryouts/{id}/stats [get]
func (c *TryoutController) GetStats(ctx *gin.Context) {
	id := ctx.Param("id")

	stats, err := c.Service.AttemptStats(id)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}
