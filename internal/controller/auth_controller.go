package controller

import (
	"tryout_backend/internal/service"
	"tryout_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	Service *service.AuthService
}

func NewAuthController(svc *service.AuthService) *AuthController {
	return &AuthController{Service: svc}
}

// @Summary 用户注册
// @Tags 认证模块
// @Accept json
// @Produce json
// @Param body body service.RegisterReq true "注册信息"
// @Success 201 {object} util.Response
// @Router /api/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req service.RegisterReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.Service.Register(req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Created(ctx, user)
}

// @Summary 用户登录
// @Tags 认证模块
// @Accept json
// @Produce json
// @Param body body service.LoginReq true "登录信息"
// @Success 200 {object} util.Response
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req service.LoginReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.Service.Login(req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, resp)
}

// @Summary 获取当前用户信息
// @Tags 认证模块
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	user, err := c.Service.GetCurrentUser(claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	util.Success(ctx, user)
}
