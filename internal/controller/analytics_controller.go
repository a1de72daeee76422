package controller

import (
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{AnalyticsService: analyticsService}
}

// currentScope 教师只能查询自己；管理员可以通过 teacherId 指定教师
func currentScope(ctx *gin.Context) (service.Scope, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Scope{}, false
	}

	scope := service.Scope{TeacherID: user.UserID, Admin: user.IsAdmin()}
	if raw := ctx.Query("teacherId"); raw != "" {
		if !scope.Admin {
			util.Forbidden(ctx)
			return service.Scope{}, false
		}
		teacherID := util.MustParseUint(raw)
		if teacherID == 0 {
			util.BadRequest(ctx, "invalid teacherId")
			return service.Scope{}, false
		}
		scope.TeacherID = teacherID
	}
	return scope, true
}

func (c *AnalyticsController) page(ctx *gin.Context) (int, int) {
	settings := c.AnalyticsService.Settings
	return util.ParsePage(ctx, settings.DefaultPageSize, settings.MaxPageSize)
}

// @Summary 课时完成统计
// @Description 教师每个课时的完成人数，按课时创建时间倒序
// @Tags 教师统计
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param teacherId query int false "教师ID（仅管理员）"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/analytics/lessons [get]
func (c *AnalyticsController) GetLessonCompletionRates(ctx *gin.Context) {
	scope, ok := currentScope(ctx)
	if !ok {
		return
	}
	page, limit := c.page(ctx)

	rates, total, err := c.AnalyticsService.LessonCompletionRates(ctx.Request.Context(), scope, page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  rates,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 课时流失分布
// @Description 最后停留在该课时的学生的课程进度分布
// @Tags 教师统计
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=model.LessonDropoff}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/teacher/analytics/lessons/{lessonId}/dropoff [get]
func (c *AnalyticsController) GetLessonDropoff(ctx *gin.Context) {
	scope, ok := currentScope(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "lessonId")
	if !ok {
		return
	}

	dropoff, err := c.AnalyticsService.LessonDropoff(ctx.Request.Context(), scope, lessonID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, dropoff)
}

// @Summary 每周活跃学生
// @Description 最近 N 周每周完成过课时的去重学生数，从旧到新
// @Tags 教师统计
// @Produce json
// @Security BearerAuth
// @Param weeks query int false "周数" default(8)
// @Success 200 {object} util.Response{data=[]model.WeeklyActiveStudents}
// @Router /api/teacher/analytics/weekly-active [get]
func (c *AnalyticsController) GetWeeklyActiveStudents(ctx *gin.Context) {
	scope, ok := currentScope(ctx)
	if !ok {
		return
	}

	weeks, _ := strconv.Atoi(ctx.DefaultQuery("weeks", "0"))

	stats, err := c.AnalyticsService.WeeklyActiveStudents(ctx.Request.Context(), scope, weeks)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}

// @Summary 测验成绩统计
// @Description 每个测验的平均分，hasAttempts 为 false 表示还没有人作答
// @Tags 教师统计
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/analytics/quizzes [get]
func (c *AnalyticsController) GetQuizPerformance(ctx *gin.Context) {
	scope, ok := currentScope(ctx)
	if !ok {
		return
	}
	page, limit := c.page(ctx)

	rows, total, err := c.AnalyticsService.QuizPerformance(ctx.Request.Context(), scope, page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  rows,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 导出统计快照
// @Description 生成 JSON 统计报告并上传到存储
// @Tags 教师统计
// @Produce json
// @Security BearerAuth
// @Success 201 {object} util.Response{data=service.ExportResult}
// @Router /api/teacher/analytics/export [post]
func (c *AnalyticsController) ExportSnapshot(ctx *gin.Context) {
	scope, ok := currentScope(ctx)
	if !ok {
		return
	}

	result, err := c.AnalyticsService.ExportSnapshot(ctx.Request.Context(), scope)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, result)
}
