package service

import (
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/internal/model"
	"tryout_backend/internal/repository"
	"tryout_backend/internal/util"
	"tryout_backend/pkg/logger"
	"tryout_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepBatchSize = 100

type AttemptService struct {
	AttemptRepo *repository.AttemptRepository
	TryoutRepo  *repository.TryoutRepository
	CourseRepo  *repository.CourseRepository
	Cfg         *config.Config
	DB          *gorm.DB

	// 配置热更新会从 watcher 协程改写，扫描协程并发读取，原子存取
	graceSeconds int64
}

func NewAttemptService(attemptRepo *repository.AttemptRepository, tryoutRepo *repository.TryoutRepository, courseRepo *repository.CourseRepository, cfg *config.Config, db *gorm.DB) *AttemptService {
	s := &AttemptService{
		AttemptRepo: attemptRepo,
		TryoutRepo:  tryoutRepo,
		CourseRepo:  courseRepo,
		Cfg:         cfg,
		DB:          db,
	}
	atomic.StoreInt64(&s.graceSeconds, int64(cfg.Tryout.GraceSeconds))
	return s
}

// SetGraceSeconds 配置热更新入口
func (s *AttemptService) SetGraceSeconds(seconds int) {
	atomic.StoreInt64(&s.graceSeconds, int64(seconds))
}

func (s *AttemptService) sweepGrace() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.graceSeconds)) * time.Second
}

// GetActiveAttempt 返回用户在该试卷下最近的未交卷尝试，没有则返回 nil
func (s *AttemptService) GetActiveAttempt(userID uint, tryoutID string) (*model.TryoutAttempt, error) {
	attempt, err := s.AttemptRepo.FindActive(s.DB, userID, tryoutID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return attempt, err
}

// StartAttempt 开始答题。已有未交卷尝试时幂等续答；否则创建新尝试并固定满分。
// 事务内锁试卷行，保证同一 (用户, 试卷) 并发 start 只产生一条未交卷记录。
func (s *AttemptService) StartAttempt(userID uint, tryoutID string) (*model.TryoutAttempt, error) {
	tryout, err := s.TryoutRepo.FindByID(tryoutID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTryoutNotFound
	} else if err != nil {
		return nil, err
	}
	if !tryout.IsPublished {
		return nil, util.ErrTryoutNotFound
	}

	enrolled, err := s.CourseRepo.IsEnrolled(tryout.CourseID, userID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	questions, err := s.TryoutRepo.ListQuestions(tryoutID)
	if err != nil {
		return nil, err
	}

	var result *model.TryoutAttempt
	created := false
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.TryoutRepo.FindByIDForUpdate(tx, tryoutID); err != nil {
			return err
		}

		existing, err := s.AttemptRepo.FindActive(tx, userID, tryoutID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		attempt := &model.TryoutAttempt{
			TryoutID:  tryoutID,
			UserID:    userID,
			StartedAt: time.Now(),
			MaxScore:  MaxScore(questions),
		}
		if err := s.AttemptRepo.Create(tx, attempt); err != nil {
			return err
		}
		result = attempt
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		monitoring.AttemptsStarted.Inc()
	}
	return result, nil
}

// GetUserAttempts 用户在该试卷下的全部尝试，最新在前
func (s *AttemptService) GetUserAttempts(userID uint, tryoutID string) ([]model.TryoutAttempt, error) {
	return s.AttemptRepo.ListByUser(userID, tryoutID)
}

// SubmitAnswer 写入单题作答，(尝试, 题目) 维度覆盖式保存
func (s *AttemptService) SubmitAnswer(userID uint, attemptID, questionID, value string) (*model.TryoutAnswer, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	} else if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.IsCompleted {
		return nil, util.ErrAttemptCompleted
	}

	question, err := s.TryoutRepo.FindQuestionByID(questionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	} else if err != nil {
		return nil, err
	}
	if question.TryoutID != attempt.TryoutID {
		return nil, util.ErrQuestionNotFound
	}

	if strings.TrimSpace(value) == "" {
		return nil, util.ErrInvalidAnswer
	}
	if question.QuestionType == model.QuestionMultipleChoice {
		var selected []string
		if err := json.Unmarshal([]byte(value), &selected); err != nil {
			return nil, util.ErrInvalidAnswer
		}
	}

	answer := &model.TryoutAnswer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Value:      value,
	}
	if err := s.AttemptRepo.UpsertAnswer(answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// CompleteAttempt 交卷并计分。重复交卷（定时自动交卷与手动提交竞争）幂等，
// 直接返回已有结果，不重复计分。
func (s *AttemptService) CompleteAttempt(userID uint, attemptID string) (*model.TryoutAttempt, error) {
	return s.finalizeAttempt(attemptID, userID, "manual")
}

func (s *AttemptService) finalizeAttempt(attemptID string, ownerID uint, trigger string) (*model.TryoutAttempt, error) {
	var result *model.TryoutAttempt
	scored := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		attempt, err := s.AttemptRepo.FindByIDForUpdate(tx, attemptID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		} else if err != nil {
			return err
		}
		// ownerID 为 0 时来自后台自动交卷，跳过归属校验
		if ownerID != 0 && attempt.UserID != ownerID {
			return util.ErrAttemptNotFound
		}
		if attempt.IsCompleted {
			result = attempt
			return nil
		}

		tryout, err := s.TryoutRepo.FindByID(attempt.TryoutID)
		if err != nil {
			return err
		}
		questions, err := s.TryoutRepo.ListQuestions(attempt.TryoutID)
		if err != nil {
			return err
		}
		questionIDs := make([]string, len(questions))
		for i, q := range questions {
			questionIDs[i] = q.ID
		}
		options, err := s.TryoutRepo.ListOptions(questionIDs)
		if err != nil {
			return err
		}
		optionsByQuestion := make(map[string][]model.QuestionOption)
		for _, o := range options {
			optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], o)
		}

		var answers []model.TryoutAnswer
		if err := tx.Where("attempt_id = ?", attemptID).Find(&answers).Error; err != nil {
			return err
		}
		answerByQuestion := make(map[string]*model.TryoutAnswer, len(answers))
		for i := range answers {
			answerByQuestion[answers[i].QuestionID] = &answers[i]
		}

		totalScore := 0
		needsManual := false
		for i := range questions {
			q := &questions[i]
			ans, ok := answerByQuestion[q.ID]
			if !ok {
				// 未作答计 0 分，满分中仍包含该题
				continue
			}
			points, correct, manual := GradeAnswer(q, optionsByQuestion[q.ID], ans.Value)
			ans.Points = points
			ans.IsCorrect = correct
			if manual {
				needsManual = true
			}
			totalScore += points
		}

		now := time.Now()
		attempt.Score = totalScore
		attempt.IsCompleted = true
		attempt.NeedsManual = needsManual
		attempt.EndedAt = &now
		if deadline, ok := Deadline(attempt.StartedAt, tryout.DurationMinutes); ok && now.After(deadline) {
			attempt.IsTimeout = true
		}

		if err := s.AttemptRepo.SaveAnswers(tx, answers); err != nil {
			return err
		}
		if err := tx.Save(attempt).Error; err != nil {
			return err
		}

		result = attempt
		scored = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if scored {
		monitoring.AttemptsCompleted.WithLabelValues(trigger).Inc()
	}
	return result, nil
}

// SweepExpired 自动交卷：处理限时已过（含宽限期）仍未交卷的尝试
func (s *AttemptService) SweepExpired() (int, error) {
	expired, err := s.AttemptRepo.FindExpired(s.sweepGrace(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, attempt := range expired {
		if _, err := s.finalizeAttempt(attempt.ID, 0, "auto"); err != nil {
			logger.Log.Error("auto-submit failed",
				zap.String("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

type ResultOption struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

type ResultQuestion struct {
	ID           string         `json:"id"`
	QuestionType string         `json:"questionType"`
	Content      string         `json:"content"`
	Points       int            `json:"points"`
	Order        int            `json:"order"`
	Options      []ResultOption `json:"options,omitempty"`
	UserAnswer   *string        `json:"userAnswer,omitempty"`
	AwardedPoints int           `json:"awardedPoints"`
	IsCorrect    bool           `json:"isCorrect"`
	Explanation  string         `json:"explanation,omitempty"`
}

type AttemptResult struct {
	Attempt   *model.TryoutAttempt `json:"attempt"`
	Title     string               `json:"title"`
	Questions []ResultQuestion     `json:"questions"`
}

// GetAttemptResults 成绩单：答案与题目、选项、解析的联结视图，仅限已交卷
func (s *AttemptService) GetAttemptResults(userID uint, attemptID string) (*AttemptResult, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	} else if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	if !attempt.IsCompleted {
		return nil, util.ErrAttemptInProgress
	}

	tryout, err := s.TryoutRepo.FindByID(attempt.TryoutID)
	if err != nil {
		return nil, err
	}
	questions, err := s.TryoutRepo.ListQuestions(attempt.TryoutID)
	if err != nil {
		return nil, err
	}
	questionIDs := make([]string, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
	}
	options, err := s.TryoutRepo.ListOptions(questionIDs)
	if err != nil {
		return nil, err
	}
	optionsByQuestion := make(map[string][]model.QuestionOption)
	for _, o := range options {
		optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], o)
	}
	answers, err := s.AttemptRepo.GetAnswers(attemptID)
	if err != nil {
		return nil, err
	}
	answerByQuestion := make(map[string]model.TryoutAnswer, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a
	}

	resultQs := make([]ResultQuestion, len(questions))
	for i, q := range questions {
		rq := ResultQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Content:      q.Content,
			Points:       q.Points,
			Order:        q.Order,
			Explanation:  q.Explanation,
		}
		for _, o := range optionsByQuestion[q.ID] {
			rq.Options = append(rq.Options, ResultOption{
				ID:        o.ID,
				Content:   o.Content,
				IsCorrect: o.IsCorrect,
				Order:     o.Order,
			})
		}
		if a, ok := answerByQuestion[q.ID]; ok {
			value := a.Value
			rq.UserAnswer = &value
			rq.AwardedPoints = a.Points
			rq.IsCorrect = a.IsCorrect
		}
		resultQs[i] = rq
	}

	return &AttemptResult{
		Attempt:   attempt,
		Title:     tryout.Title,
		Questions: resultQs,
	}, nil
}
