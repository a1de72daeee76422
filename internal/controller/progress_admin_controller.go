package controller

import (
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressAdminController struct {
	CompletionService *service.CompletionService
}

func NewProgressAdminController(completionService *service.CompletionService) *ProgressAdminController {
	return &ProgressAdminController{CompletionService: completionService}
}

// @Summary 重算课程进度
// @Description 按完成记录重新计算课程下所有选课的进度，课时发布或删除后使用
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{courseId}/recompute [post]
func (c *ProgressAdminController) RecomputeCourse(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "courseId")
	if !ok {
		return
	}

	n, err := c.CompletionService.ReconcileCourse(ctx.Request.Context(), courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"courseId":    courseID,
		"enrollments": n,
	})
}
