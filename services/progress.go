package services

import (
	"sort"
	"time"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"

	trendMinResults = 4
	trendThreshold  = 5.0
	recentWindow    = 7 * 24 * time.Hour
)

type SubjectStats struct {
	Count        int     `json:"count"`
	TotalScore   float64 `json:"totalScore"`
	AverageScore float64 `json:"averageScore"`
}

type RecentActivity struct {
	QuizzesThisWeek      int     `json:"quizzesThisWeek"`
	AverageScoreThisWeek float64 `json:"averageScoreThisWeek"`
}

type LearningProgress struct {
	TotalQuizzes     int                     `json:"totalQuizzes"`
	AverageScore     float64                 `json:"averageScore"`
	TotalTimeSpent   int64                   `json:"totalTimeSpent"`
	SubjectBreakdown map[string]SubjectStats `json:"subjectBreakdown"`
	ProgressTrend    string                  `json:"progressTrend"`
	RecentActivity   RecentActivity          `json:"recentActivity"`
}

// ComputeProgress tổng hợp kết quả quiz; results cần được nạp kèm Companion và Quiz
func ComputeProgress(results []models.QuizResult, now time.Time) LearningProgress {
	progress := LearningProgress{
		SubjectBreakdown: map[string]SubjectStats{},
		ProgressTrend:    TrendStable,
	}
	if len(results) == 0 {
		return progress
	}

	sorted := make([]models.QuizResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CompletedAt.Before(sorted[j].CompletedAt)
	})

	var sum, recentSum float64
	since := now.Add(-recentWindow)
	for _, r := range sorted {
		sum += r.Percentage
		progress.TotalTimeSpent += int64(r.TimeTaken)

		subject := resultSubject(r)
		stats := progress.SubjectBreakdown[subject]
		stats.Count++
		stats.TotalScore += r.Percentage
		stats.AverageScore = round2(stats.TotalScore / float64(stats.Count))
		progress.SubjectBreakdown[subject] = stats

		if r.CompletedAt.After(since) {
			progress.RecentActivity.QuizzesThisWeek++
			recentSum += r.Percentage
		}
	}

	progress.TotalQuizzes = len(sorted)
	progress.AverageScore = round2(sum / float64(len(sorted)))
	if n := progress.RecentActivity.QuizzesThisWeek; n > 0 {
		progress.RecentActivity.AverageScoreThisWeek = round2(recentSum / float64(n))
	}
	progress.ProgressTrend = trend(sorted)
	return progress
}

// trend so sánh trung bình nửa đầu và nửa sau theo thời gian, ngưỡng ±5 điểm phần trăm
func trend(sorted []models.QuizResult) string {
	if len(sorted) < trendMinResults {
		return TrendStable
	}
	mid := len(sorted) / 2
	first, second := mean(sorted[:mid]), mean(sorted[mid:])
	switch {
	case second > first+trendThreshold:
		return TrendImproving
	case second < first-trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(results []models.QuizResult) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Percentage
	}
	return sum / float64(len(results))
}

func resultSubject(r models.QuizResult) string {
	if r.Companion != nil && r.Companion.Subject != "" {
		return r.Companion.Subject
	}
	if r.Quiz != nil && r.Quiz.Subject != "" {
		return r.Quiz.Subject
	}
	return "General"
}
