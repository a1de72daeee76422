package service

import (
	"edu_progress_backend/internal/model"
	"sort"
)

// LessonBrief 导航中使用的课时摘要
type LessonBrief struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

func briefOf(lesson *model.Lesson) *LessonBrief {
	if lesson == nil {
		return nil
	}
	return &LessonBrief{ID: lesson.ID, Title: lesson.Title, Order: lesson.Order}
}

// Siblings 上一课/下一课，不存在时为 nil
type Siblings struct {
	Previous *model.Lesson
	Next     *model.Lesson
}

// SortLessons 按 order 升序，相同 order 按创建时间再按 ID，保证顺序全序且稳定
func SortLessons(lessons []model.Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		a, b := lessons[i], lessons[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func indexOfLesson(lessonID uint, ordered []model.Lesson) int {
	for i := range ordered {
		if ordered[i].ID == lessonID {
			return i
		}
	}
	return -1
}

// ResolveSiblings ordered 必须已排序；独立课时传空列表
func ResolveSiblings(lessonID uint, ordered []model.Lesson) Siblings {
	idx := indexOfLesson(lessonID, ordered)
	if idx < 0 {
		return Siblings{}
	}

	var siblings Siblings
	if idx > 0 {
		siblings.Previous = &ordered[idx-1]
	}
	if idx < len(ordered)-1 {
		siblings.Next = &ordered[idx+1]
	}
	return siblings
}

// ResolveResumePoint 返回学生应继续学习的课时。
// 先从 LastAccessedLessonID 向后找第一个未完成课时，找不到再从头扫描；
// 全部完成时返回最后一课，课程没有课时返回 nil
func ResolveResumePoint(enrollment *model.Enrollment, ordered []model.Lesson, completed map[uint]bool) *model.Lesson {
	if len(ordered) == 0 {
		return nil
	}

	if enrollment != nil && enrollment.LastAccessedLessonID != nil {
		if start := indexOfLesson(*enrollment.LastAccessedLessonID, ordered); start >= 0 {
			if lesson := firstIncomplete(ordered[start:], completed); lesson != nil {
				return lesson
			}
		}
	}

	if lesson := firstIncomplete(ordered, completed); lesson != nil {
		return lesson
	}

	return &ordered[len(ordered)-1]
}

func firstIncomplete(lessons []model.Lesson, completed map[uint]bool) *model.Lesson {
	for i := range lessons {
		if !completed[lessons[i].ID] {
			return &lessons[i]
		}
	}
	return nil
}
