package app

import (
	"edu_progress_backend/docs"
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/middleware"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		registerStudentRoutes(authGroup, c)
		registerTeacherRoutes(authGroup, c)
		registerAdminRoutes(authGroup, c)
	}
}

func registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	courses := rg.Group("/courses/:courseId")
	{
		courses.POST("/enroll", c.learning.Enroll)
		courses.GET("/progress", c.learning.GetCourseProgress)
		courses.GET("/resume", c.learning.ResumeCourse)
	}

	lessons := rg.Group("/lessons/:lessonId")
	{
		lessons.GET("", c.learning.ViewLesson)
		lessons.POST("/complete", c.learning.CompleteLesson)
	}

	rg.POST("/quizzes/:quizId/submit", c.learning.SubmitQuiz)
}

func registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher/analytics")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/lessons", c.analytics.GetLessonCompletionRates)
		teacher.GET("/lessons/:lessonId/dropoff", c.analytics.GetLessonDropoff)
		teacher.GET("/weekly-active", c.analytics.GetWeeklyActiveStudents)
		teacher.GET("/quizzes", c.analytics.GetQuizPerformance)
		teacher.POST("/export", c.analytics.ExportSnapshot)
	}
}

func registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/courses/:courseId/recompute", c.progressAdmin.RecomputeCourse)
	}
}
