package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

var progressNow = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

func resultAt(pct float64, daysAgo int, companionSubject, quizSubject string) models.QuizResult {
	r := models.QuizResult{
		Percentage:  pct,
		TimeTaken:   1000,
		CompletedAt: progressNow.AddDate(0, 0, -daysAgo),
	}
	if companionSubject != "" {
		r.Companion = &models.Companion{Subject: companionSubject}
	}
	if quizSubject != "" {
		r.Quiz = &models.Quiz{Subject: quizSubject}
	}
	return r
}

func TestComputeProgress_Empty(t *testing.T) {
	p := ComputeProgress(nil, progressNow)
	assert.Equal(t, 0, p.TotalQuizzes)
	assert.Equal(t, 0.0, p.AverageScore)
	assert.Equal(t, TrendStable, p.ProgressTrend)
	assert.NotNil(t, p.SubjectBreakdown)
	assert.Empty(t, p.SubjectBreakdown)
}

func TestComputeProgress_Trend(t *testing.T) {
	cases := []struct {
		name string
		pcts []float64
		want string
	}{
		{"too few results", []float64{10, 20, 90}, TrendStable},
		{"improving", []float64{50, 60, 70, 80}, TrendImproving},
		{"declining", []float64{90, 80, 50, 40}, TrendDeclining},
		{"within threshold", []float64{60, 60, 64, 66}, TrendStable},
		{"exactly five is stable", []float64{60, 60, 65, 65}, TrendStable},
		{"odd count puts extra in second half", []float64{50, 50, 70, 70, 70}, TrendImproving},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var results []models.QuizResult
			for i, pct := range tc.pcts {
				results = append(results, resultAt(pct, 30-i, "maths", ""))
			}
			assert.Equal(t, tc.want, ComputeProgress(results, progressNow).ProgressTrend)
		})
	}
}

func TestComputeProgress_OrdersChronologically(t *testing.T) {
	// đưa vào theo thứ tự ngược, xu hướng vẫn tính theo completed_at
	results := []models.QuizResult{
		resultAt(90, 1, "maths", ""),
		resultAt(85, 2, "maths", ""),
		resultAt(40, 10, "maths", ""),
		resultAt(30, 11, "maths", ""),
	}
	assert.Equal(t, TrendImproving, ComputeProgress(results, progressNow).ProgressTrend)
}

func TestComputeProgress_Aggregates(t *testing.T) {
	results := []models.QuizResult{
		resultAt(100, 20, "maths", "general"),
		resultAt(50, 10, "", "science"),
		resultAt(75, 3, "", ""),
		resultAt(30, 1, "maths", ""),
	}
	p := ComputeProgress(results, progressNow)

	assert.Equal(t, 4, p.TotalQuizzes)
	assert.Equal(t, 63.75, p.AverageScore)
	assert.Equal(t, int64(4000), p.TotalTimeSpent)

	assert.Equal(t, SubjectStats{Count: 2, TotalScore: 130, AverageScore: 65}, p.SubjectBreakdown["maths"])
	assert.Equal(t, 1, p.SubjectBreakdown["science"].Count)
	assert.Equal(t, 1, p.SubjectBreakdown["General"].Count)

	assert.Equal(t, 2, p.RecentActivity.QuizzesThisWeek)
	assert.Equal(t, 52.5, p.RecentActivity.AverageScoreThisWeek)
}
