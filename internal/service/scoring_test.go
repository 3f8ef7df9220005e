package service

import (
	"encoding/json"
	"testing"
	"time"

	"tryout_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func minutes(n int) *int {
	return &n
}

func TestDeadline(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	deadline, ok := Deadline(start, minutes(30))
	assert.True(t, ok)
	assert.Equal(t, start.Add(30*time.Minute), deadline)

	_, ok = Deadline(start, nil)
	assert.False(t, ok)

	_, ok = Deadline(start, minutes(0))
	assert.False(t, ok)
}

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// 不限时
	assert.Equal(t, -1, RemainingSeconds(start, nil, start.Add(time.Hour)))

	// 进行中
	assert.Equal(t, 600, RemainingSeconds(start, minutes(30), start.Add(20*time.Minute)))

	// 已过期不出现负数
	assert.Equal(t, 0, RemainingSeconds(start, minutes(30), start.Add(31*time.Minute)))

	// 刚好到期
	assert.Equal(t, 0, RemainingSeconds(start, minutes(30), start.Add(30*time.Minute)))
}

func singleChoiceQuestion(points int) (*model.TryoutQuestion, []model.QuestionOption) {
	q := &model.TryoutQuestion{QuestionType: model.QuestionSingleChoice, Points: points}
	opts := []model.QuestionOption{
		{UUIDBase: model.UUIDBase{ID: "opt-a"}, IsCorrect: false},
		{UUIDBase: model.UUIDBase{ID: "opt-b"}, IsCorrect: true},
		{UUIDBase: model.UUIDBase{ID: "opt-c"}, IsCorrect: false},
	}
	return q, opts
}

func TestGradeAnswerSingleChoice(t *testing.T) {
	q, opts := singleChoiceQuestion(5)

	points, correct, manual := GradeAnswer(q, opts, "opt-b")
	assert.Equal(t, 5, points)
	assert.True(t, correct)
	assert.False(t, manual)

	points, correct, _ = GradeAnswer(q, opts, "opt-a")
	assert.Equal(t, 0, points)
	assert.False(t, correct)

	points, correct, _ = GradeAnswer(q, opts, "nonexistent")
	assert.Equal(t, 0, points)
	assert.False(t, correct)
}

func multipleChoiceQuestion(points int) (*model.TryoutQuestion, []model.QuestionOption) {
	q := &model.TryoutQuestion{QuestionType: model.QuestionMultipleChoice, Points: points}
	opts := []model.QuestionOption{
		{UUIDBase: model.UUIDBase{ID: "opt-a"}, IsCorrect: true},
		{UUIDBase: model.UUIDBase{ID: "opt-b"}, IsCorrect: false},
		{UUIDBase: model.UUIDBase{ID: "opt-c"}, IsCorrect: true},
		{UUIDBase: model.UUIDBase{ID: "opt-d"}, IsCorrect: false},
	}
	return q, opts
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	assert.NoError(t, err)
	return string(data)
}

func TestGradeAnswerMultipleChoice(t *testing.T) {
	q, opts := multipleChoiceQuestion(10)

	// 全对才得分，顺序无关
	points, correct, _ := GradeAnswer(q, opts, mustJSON(t, []string{"opt-c", "opt-a"}))
	assert.Equal(t, 10, points)
	assert.True(t, correct)

	// 少选不得分
	points, correct, _ = GradeAnswer(q, opts, mustJSON(t, []string{"opt-a"}))
	assert.Equal(t, 0, points)
	assert.False(t, correct)

	// 多选不得分
	points, correct, _ = GradeAnswer(q, opts, mustJSON(t, []string{"opt-a", "opt-c", "opt-b"}))
	assert.Equal(t, 0, points)
	assert.False(t, correct)

	// 重复选项视为同一集合
	points, correct, _ = GradeAnswer(q, opts, mustJSON(t, []string{"opt-a", "opt-a", "opt-c"}))
	assert.Equal(t, 10, points)
	assert.True(t, correct)

	// 非法 JSON 计 0 分
	points, correct, manual := GradeAnswer(q, opts, "not-json")
	assert.Equal(t, 0, points)
	assert.False(t, correct)
	assert.False(t, manual)
}

func TestGradeAnswerShortAnswer(t *testing.T) {
	q := &model.TryoutQuestion{
		QuestionType:    model.QuestionShortAnswer,
		Points:          3,
		AcceptedAnswers: json.RawMessage(`["Jakarta", "DKI Jakarta"]`),
	}

	// 忽略大小写与首尾空白
	points, correct, manual := GradeAnswer(q, nil, "  jakarta ")
	assert.Equal(t, 3, points)
	assert.True(t, correct)
	assert.False(t, manual)

	points, correct, _ = GradeAnswer(q, nil, "dki jakarta")
	assert.Equal(t, 3, points)
	assert.True(t, correct)

	points, correct, _ = GradeAnswer(q, nil, "Bandung")
	assert.Equal(t, 0, points)
	assert.False(t, correct)

	// 未配置参考答案转人工评阅
	noRef := &model.TryoutQuestion{QuestionType: model.QuestionShortAnswer, Points: 3}
	points, correct, manual = GradeAnswer(noRef, nil, "anything")
	assert.Equal(t, 0, points)
	assert.False(t, correct)
	assert.True(t, manual)
}

func TestGradeAnswerLongAnswer(t *testing.T) {
	q := &model.TryoutQuestion{QuestionType: model.QuestionLongAnswer, Points: 20}

	points, correct, manual := GradeAnswer(q, nil, "一段论述")
	assert.Equal(t, 0, points)
	assert.False(t, correct)
	assert.True(t, manual)
}

func TestMaxScore(t *testing.T) {
	questions := []model.TryoutQuestion{
		{Points: 5},
		{Points: 10},
		{Points: 0},
		{Points: 3},
	}
	assert.Equal(t, 18, MaxScore(questions))
	assert.Equal(t, 0, MaxScore(nil))
}
