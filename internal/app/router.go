package app

import (
	"tryout_backend/docs"
	"tryout_backend/internal/config"
	"tryout_backend/internal/middleware"
	"tryout_backend/internal/model"
	"tryout_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/me", c.auth.Me)

	// 课程
	rg.GET("/courses", c.course.ListCourses)
	rg.GET("/courses/:id", c.course.GetCourse)
	rg.POST("/courses/:id/enroll", c.course.Enroll)

	// 答题
	rg.GET("/tryouts", c.attempt.ListTryouts)
	rg.GET("/tryouts/:id", c.attempt.GetTryoutDetail)
	rg.POST("/tryouts/:id/attempts", c.attempt.StartAttempt)
	rg.GET("/tryouts/:id/attempts", c.attempt.ListMyAttempts)
	rg.GET("/tryouts/:id/attempts/active", c.attempt.GetActiveAttempt)
	rg.PUT("/attempts/:id/answers", c.attempt.SubmitAnswer)
	rg.POST("/attempts/:id/complete", c.attempt.CompleteAttempt)
	rg.GET("/attempts/:id/results", c.attempt.GetResults)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/courses", c.course.CreateCourse)

		teacher.POST("/tryouts", c.tryout.CreateTryout)
		teacher.GET("/tryouts", c.tryout.ListTryouts)
		teacher.GET("/tryouts/:id", c.tryout.GetTryout)
		teacher.PUT("/tryouts/:id", c.tryout.UpdateTryout)
		teacher.DELETE("/tryouts/:id", c.tryout.DeleteTryout)
		teacher.PUT("/tryouts/:id/publish", c.tryout.PublishTryout)
		teacher.GET("/tryouts/:id/attempts", c.tryout.ListAttempts)
		teacher.GET("/tryouts/:id/stats", c.tryout.GetStats)

		teacher.GET("/attempts/:attemptId", c.tryout.GetAttemptDetail)
		teacher.DELETE("/attempts/:attemptId", c.tryout.ResetAttempt)
	}
}
