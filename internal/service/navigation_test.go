package service

import (
	"edu_progress_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lessonAt(id uint, order int, created time.Time) model.Lesson {
	l := model.Lesson{Order: order, Title: "l"}
	l.ID = id
	l.CreatedAt = created
	return l
}

// abc 三个按顺序排列的课时 A(1) B(2) C(3)
func abc() []model.Lesson {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return []model.Lesson{
		lessonAt(1, 1, t0),
		lessonAt(2, 2, t0),
		lessonAt(3, 3, t0),
	}
}

func TestSortLessons_TiesBrokenByCreationTime(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	lessons := []model.Lesson{
		lessonAt(10, 2, t0),
		lessonAt(11, 1, t0.Add(time.Hour)),
		lessonAt(12, 1, t0),
		lessonAt(13, 1, t0),
	}

	SortLessons(lessons)

	ids := make([]uint, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []uint{12, 13, 11, 10}, ids)
}

func TestResolveSiblings(t *testing.T) {
	ordered := abc()

	first := ResolveSiblings(1, ordered)
	assert.Nil(t, first.Previous)
	require.NotNil(t, first.Next)
	assert.Equal(t, uint(2), first.Next.ID)

	middle := ResolveSiblings(2, ordered)
	require.NotNil(t, middle.Previous)
	require.NotNil(t, middle.Next)
	assert.Equal(t, uint(1), middle.Previous.ID)
	assert.Equal(t, uint(3), middle.Next.ID)

	last := ResolveSiblings(3, ordered)
	require.NotNil(t, last.Previous)
	assert.Equal(t, uint(2), last.Previous.ID)
	assert.Nil(t, last.Next)

	missing := ResolveSiblings(42, ordered)
	assert.Nil(t, missing.Previous)
	assert.Nil(t, missing.Next)
}

func TestResolveSiblings_IndependentLesson(t *testing.T) {
	siblings := ResolveSiblings(7, nil)
	assert.Nil(t, siblings.Previous)
	assert.Nil(t, siblings.Next)
}

func TestResolveSiblings_SingleLesson(t *testing.T) {
	ordered := abc()[:1]
	siblings := ResolveSiblings(1, ordered)
	assert.Nil(t, siblings.Previous)
	assert.Nil(t, siblings.Next)
}

func TestResolveResumePoint(t *testing.T) {
	hint := func(id uint) *model.Enrollment {
		return &model.Enrollment{LastAccessedLessonID: &id}
	}

	tests := []struct {
		name       string
		enrollment *model.Enrollment
		completed  map[uint]bool
		want       uint
	}{
		{
			name:       "next after hint",
			enrollment: hint(1),
			completed:  map[uint]bool{1: true},
			want:       2,
		},
		{
			name:       "stale hint falls back to full scan",
			enrollment: hint(3),
			completed:  map[uint]bool{1: true, 3: true},
			want:       2,
		},
		{
			name:       "fully complete returns last lesson",
			enrollment: hint(2),
			completed:  map[uint]bool{1: true, 2: true, 3: true},
			want:       3,
		},
		{
			name:       "hint itself incomplete",
			enrollment: hint(2),
			completed:  map[uint]bool{1: true},
			want:       2,
		},
		{
			name:       "no hint",
			enrollment: &model.Enrollment{},
			completed:  map[uint]bool{},
			want:       1,
		},
		{
			name:       "hint not in course",
			enrollment: hint(99),
			completed:  map[uint]bool{1: true},
			want:       2,
		},
		{
			name:       "forward scan wins over earlier gap",
			enrollment: hint(2),
			completed:  map[uint]bool{2: true},
			want:       3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveResumePoint(tt.enrollment, abc(), tt.completed)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestResolveResumePoint_EmptyCourse(t *testing.T) {
	id := uint(1)
	assert.Nil(t, ResolveResumePoint(&model.Enrollment{LastAccessedLessonID: &id}, nil, map[uint]bool{1: true}))
}

func TestResolveResumePoint_Deterministic(t *testing.T) {
	id := uint(3)
	enrollment := &model.Enrollment{LastAccessedLessonID: &id}
	completed := map[uint]bool{1: true, 3: true}

	first := ResolveResumePoint(enrollment, abc(), completed)
	second := ResolveResumePoint(enrollment, abc(), completed)
	assert.Equal(t, first.ID, second.ID)
}
