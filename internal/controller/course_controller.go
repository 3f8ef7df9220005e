package controller

import (
	"strconv"

	"tryout_backend/internal/service"
	"tryout_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	Service *service.CourseService
}

func NewCourseController(svc *service.CourseService) *CourseController {
	return &CourseController{Service: svc}
}

// @Summary 创建课程
// @Tags 课程模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CourseReq true "课程信息"
// @Success 201 {object} util.Response
// @Router /api/teacher/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CourseReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.Service.CreateCourse(user.UserID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Created(ctx, course)
}

// @Summary 获取课程列表
// @Tags 课程模块
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	courses, total, err := c.Service.ListCourses(page, limit)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: courses, Total: total, Page: page, Limit: limit})
}

// @Summary 获取课程详情
// @Tags 课程模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.Service.GetCourse(id)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, course)
}

// @Summary 选课
// @Tags 课程模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.Enroll(id, user.UserID); err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"enrolled": true})
}
