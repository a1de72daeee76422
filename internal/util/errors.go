package util

import "errors"

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrNotEnrolled         = errors.New("enrollment required")
	ErrNotLessonOwner      = errors.New("not the owner of this lesson")
	ErrInvalidQuizAnswers  = errors.New("invalid quiz answers")
	ErrInternalConsistency = errors.New("internal consistency fault")
)
