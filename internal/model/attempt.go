package model

import "time"

// swagger:model TryoutAttempt
type TryoutAttempt struct {
	UUIDBase
	TryoutID    string     `gorm:"index:idx_tryout_user;type:varchar(36)" json:"tryoutId"`
	UserID      uint       `gorm:"index:idx_tryout_user;type:bigint unsigned" json:"userId"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	IsCompleted bool       `gorm:"default:false;index" json:"isCompleted"`
	// 到期自动交卷时为 true
	IsTimeout bool `gorm:"default:false" json:"isTimeout"`
	// 存在无法自动判分的题目（长答/无参考答案的简答）
	NeedsManual bool `gorm:"default:false" json:"needsManual"`
	Score       int  `gorm:"default:0" json:"score"`
	MaxScore    int  `gorm:"default:0" json:"maxScore"`
}

func (TryoutAttempt) TableName() string {
	return "tryout_attempts"
}

type TryoutAnswer struct {
	UUIDBase
	AttemptID  string `gorm:"index:idx_attempt_question,unique;type:varchar(36)" json:"attemptId"`
	QuestionID string `gorm:"index:idx_attempt_question,unique;type:varchar(36)" json:"questionId"`
	// 原始作答：选择题存选项ID（多选为 JSON array），主观题存文本
	Value     string `gorm:"type:text" json:"value"`
	Points    int    `gorm:"default:0" json:"points"`
	IsCorrect bool   `gorm:"default:false" json:"isCorrect"`
}

func (TryoutAnswer) TableName() string {
	return "tryout_answers"
}
