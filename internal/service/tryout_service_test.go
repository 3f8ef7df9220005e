package service

import (
	"testing"

	"tryout_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuestionReq(t *testing.T) {
	correct := TryoutOptionReq{Content: "A", IsCorrect: true}
	wrong := TryoutOptionReq{Content: "B", IsCorrect: false}

	tests := []struct {
		name    string
		req     TryoutQuestionReq
		wantErr bool
	}{
		{
			name:    "单选一个正确选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionSingleChoice, Options: []TryoutOptionReq{correct, wrong}},
			wantErr: false,
		},
		{
			name:    "单选没有正确选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionSingleChoice, Options: []TryoutOptionReq{wrong, wrong}},
			wantErr: true,
		},
		{
			name:    "单选多个正确选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionSingleChoice, Options: []TryoutOptionReq{correct, correct}},
			wantErr: true,
		},
		{
			name:    "单选没有选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionSingleChoice},
			wantErr: true,
		},
		{
			name:    "多选至少一个正确选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionMultipleChoice, Options: []TryoutOptionReq{correct, correct, wrong}},
			wantErr: false,
		},
		{
			name:    "多选没有正确选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionMultipleChoice, Options: []TryoutOptionReq{wrong}},
			wantErr: true,
		},
		{
			name:    "简答题不需要选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionShortAnswer},
			wantErr: false,
		},
		{
			name:    "长答题不需要选项",
			req:     TryoutQuestionReq{QuestionType: model.QuestionLongAnswer},
			wantErr: false,
		},
		{
			name:    "未知题型",
			req:     TryoutQuestionReq{QuestionType: "essayish"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuestionReq(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDuration(t *testing.T) {
	s := &TryoutService{}

	tryout := &model.Tryout{}

	thirty := 30
	s.applyDuration(tryout, &thirty)
	assert.NotNil(t, tryout.DurationMinutes)
	assert.Equal(t, 30, *tryout.DurationMinutes)

	// nil 表示不修改
	s.applyDuration(tryout, nil)
	assert.NotNil(t, tryout.DurationMinutes)

	// 0 或负数清空限时
	zero := 0
	s.applyDuration(tryout, &zero)
	assert.Nil(t, tryout.DurationMinutes)
}
