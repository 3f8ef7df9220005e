package service

import (
	"encoding/json"
	"strings"
	"time"

	"tryout_backend/internal/model"
)

// Deadline 计算交卷截止时间；不限时返回 false
func Deadline(startedAt time.Time, durationMinutes *int) (time.Time, bool) {
	if durationMinutes == nil || *durationMinutes <= 0 {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(*durationMinutes) * time.Minute), true
}

// RemainingSeconds 剩余答题秒数，已过期返回 0；不限时返回 -1
func RemainingSeconds(startedAt time.Time, durationMinutes *int, now time.Time) int {
	deadline, ok := Deadline(startedAt, durationMinutes)
	if !ok {
		return -1
	}
	remaining := int(deadline.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GradeAnswer 对单题判分，返回得分、是否判对、是否需要人工评阅。
// 选择题按选项ID精确比对；多选为全对才得分，不给部分分。
func GradeAnswer(q *model.TryoutQuestion, options []model.QuestionOption, value string) (points int, correct bool, needsManual bool) {
	switch q.QuestionType {
	case model.QuestionSingleChoice:
		correctID := ""
		for _, o := range options {
			if o.IsCorrect {
				correctID = o.ID
				break
			}
		}
		if correctID != "" && value == correctID {
			return q.Points, true, false
		}
		return 0, false, false

	case model.QuestionMultipleChoice:
		var selected []string
		if err := json.Unmarshal([]byte(value), &selected); err != nil {
			return 0, false, false
		}
		correctSet := make(map[string]bool)
		for _, o := range options {
			if o.IsCorrect {
				correctSet[o.ID] = true
			}
		}
		if len(correctSet) == 0 {
			return 0, false, false
		}
		selectedSet := make(map[string]bool, len(selected))
		for _, id := range selected {
			selectedSet[id] = true
		}
		if len(selectedSet) != len(correctSet) {
			return 0, false, false
		}
		for id := range correctSet {
			if !selectedSet[id] {
				return 0, false, false
			}
		}
		return q.Points, true, false

	case model.QuestionShortAnswer:
		var accepted []string
		if len(q.AcceptedAnswers) > 0 {
			_ = json.Unmarshal(q.AcceptedAnswers, &accepted)
		}
		if len(accepted) == 0 {
			// 未配置参考答案，转人工评阅
			return 0, false, true
		}
		got := strings.TrimSpace(strings.ToLower(value))
		for _, a := range accepted {
			if got == strings.TrimSpace(strings.ToLower(a)) {
				return q.Points, true, false
			}
		}
		return 0, false, false

	case model.QuestionLongAnswer:
		return 0, false, true
	}

	return 0, false, false
}

// MaxScore 试卷满分，开始答题时固定写入尝试记录
func MaxScore(questions []model.TryoutQuestion) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}
