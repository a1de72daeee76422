package controller

import (
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningController struct {
	LearningService *service.LearningService
}

func NewLearningController(learningService *service.LearningService) *LearningController {
	return &LearningController{LearningService: learningService}
}

// currentActor 未登录时直接写 401
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{UserID: user.UserID, Role: user.Role}, true
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}

// @Summary 选课
// @Description 重复选课不会报错，返回已有的选课记录
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.EnrollResult}
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/enroll [post]
func (c *LearningController) Enroll(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	result, err := c.LearningService.Enroll(ctx.Request.Context(), actor, courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	if result.Created {
		util.Created(ctx, result)
		return
	}
	util.Success(ctx, result)
}

// @Summary 查看课时
// @Description 返回课时内容、完成状态和上一课/下一课
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonView}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/lessons/{lessonId} [get]
func (c *LearningController) ViewLesson(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "lessonId")
	if !ok {
		return
	}

	view, err := c.LearningService.ViewLesson(ctx.Request.Context(), actor, lessonID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

// @Summary 完成课时
// @Description 标记课时完成（可重复调用），返回下一课
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=service.CompleteLessonResult}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/lessons/{lessonId}/complete [post]
func (c *LearningController) CompleteLesson(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "lessonId")
	if !ok {
		return
	}

	result, err := c.LearningService.CompleteLesson(ctx.Request.Context(), actor, lessonID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 获取课程进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgress}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/progress [get]
func (c *LearningController) GetCourseProgress(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	progress, err := c.LearningService.GetCourseProgress(ctx.Request.Context(), actor, courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// @Summary 继续学习
// @Description 返回学生应继续学习的课时，全部完成时返回最后一课
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.ResumeResult}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/courses/{courseId}/resume [get]
func (c *LearningController) ResumeCourse(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	resume, err := c.LearningService.ResumeCourse(ctx.Request.Context(), actor, courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, resume)
}

// @Summary 提交测验
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "测验ID"
// @Param submission body service.QuizSubmission true "答案，key 为题目ID"
// @Success 200 {object} util.Response{data=service.QuizResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{quizId}/submit [post]
func (c *LearningController) SubmitQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "quizId")
	if !ok {
		return
	}

	var submission service.QuizSubmission
	if err := ctx.ShouldBindJSON(&submission); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.LearningService.SubmitQuiz(ctx.Request.Context(), actor, quizID, submission)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
