package model

import (
	"encoding/json"
	"time"
)

const (
	QuestionSingleChoice   = "single_choice"
	QuestionMultipleChoice = "multiple_choice"
	QuestionShortAnswer    = "short_answer"
	QuestionLongAnswer     = "long_answer"
)

// swagger:model Tryout
type Tryout struct {
	UUIDBase
	CourseID    uint   `gorm:"index;type:bigint unsigned" json:"courseId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// 限时（分钟），nil 表示不限时
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	IsPublished     bool       `gorm:"default:false" json:"isPublished"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	CreatorID       uint       `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (Tryout) TableName() string {
	return "tryouts"
}

type TryoutQuestion struct {
	UUIDBase
	TryoutID     string `gorm:"index;type:varchar(36)" json:"tryoutId"`
	QuestionType string `gorm:"size:50;not null" json:"questionType"`
	Content      string `gorm:"type:text;not null" json:"content"`
	Points       int    `gorm:"default:0" json:"points"`
	Required     bool   `gorm:"default:false" json:"required"`
	// 简答题判分用的可接受答案列表（JSON array），为空则转人工评阅
	AcceptedAnswers json.RawMessage `gorm:"type:json" json:"acceptedAnswers,omitempty"`
	Explanation     string          `gorm:"type:text" json:"explanation"`
	Order           int             `gorm:"default:0" json:"order"`
}

func (TryoutQuestion) TableName() string {
	return "tryout_questions"
}

type QuestionOption struct {
	UUIDBase
	QuestionID string `gorm:"index;type:varchar(36)" json:"questionId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}
