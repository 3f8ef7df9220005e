package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/internal/model"
	"tryout_backend/internal/repository"
	"tryout_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const studentQuestionsKeyPrefix = "tryout:questions:"

type TryoutService struct {
	TryoutRepo  *repository.TryoutRepository
	CourseRepo  *repository.CourseRepository
	AttemptRepo *repository.AttemptRepository
	Redis       *redis.Client
	Cfg         *config.Config

	// 配置热更新会从 watcher 协程改写，请求协程并发读取，原子存取
	cacheTTLSeconds int64
}

func NewTryoutService(tryoutRepo *repository.TryoutRepository, courseRepo *repository.CourseRepository, attemptRepo *repository.AttemptRepository, rdb *redis.Client, cfg *config.Config) *TryoutService {
	s := &TryoutService{
		TryoutRepo:  tryoutRepo,
		CourseRepo:  courseRepo,
		AttemptRepo: attemptRepo,
		Redis:       rdb,
		Cfg:         cfg,
	}
	atomic.StoreInt64(&s.cacheTTLSeconds, int64(cfg.Tryout.CacheTTLSeconds))
	return s
}

// SetCacheTTLSeconds 配置热更新入口
func (s *TryoutService) SetCacheTTLSeconds(seconds int) {
	atomic.StoreInt64(&s.cacheTTLSeconds, int64(seconds))
}

func (s *TryoutService) cacheTTL() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.cacheTTLSeconds)) * time.Second
}

type TryoutOptionReq struct {
	ID        string `json:"id"`
	Content   string `json:"content" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

type TryoutQuestionReq struct {
	ID              string            `json:"id"`
	QuestionType    string            `json:"questionType" binding:"required"`
	Content         string            `json:"content" binding:"required"`
	Points          int               `json:"points"`
	Required        bool              `json:"required"`
	AcceptedAnswers json.RawMessage   `json:"acceptedAnswers"`
	Explanation     string            `json:"explanation"`
	Order           int               `json:"order"`
	Options         []TryoutOptionReq `json:"options"`
}

type TryoutReq struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	CourseID    *uint                `json:"courseId"`
	// 分钟；0 或负数表示不限时
	DurationMinutes *int                 `json:"durationMinutes"`
	IsPublished     *bool                `json:"isPublished"`
	Questions       *[]TryoutQuestionReq `json:"questions"`
}

func validateQuestionReq(q *TryoutQuestionReq) error {
	switch q.QuestionType {
	case model.QuestionSingleChoice:
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if len(q.Options) == 0 || correct != 1 {
			return errors.New("single choice question requires options with exactly one correct")
		}
	case model.QuestionMultipleChoice:
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if len(q.Options) == 0 || correct == 0 {
			return errors.New("multiple choice question requires options with at least one correct")
		}
	case model.QuestionShortAnswer, model.QuestionLongAnswer:
		// 主观题没有选项
	default:
		return errors.New("unknown question type: " + q.QuestionType)
	}
	return nil
}

func (s *TryoutService) applyDuration(tryout *model.Tryout, minutes *int) {
	if minutes == nil {
		return
	}
	if *minutes <= 0 {
		tryout.DurationMinutes = nil
		return
	}
	d := *minutes
	tryout.DurationMinutes = &d
}

func (s *TryoutService) CreateTryout(creatorID uint, req TryoutReq) (*model.Tryout, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, errors.New("title is required")
	}
	if req.CourseID == nil {
		return nil, errors.New("courseId is required")
	}
	if _, err := s.CourseRepo.FindByID(*req.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if req.Questions != nil {
		for i := range *req.Questions {
			if err := validateQuestionReq(&(*req.Questions)[i]); err != nil {
				return nil, err
			}
		}
	}

	tryout := &model.Tryout{
		Title:     *req.Title,
		CourseID:  *req.CourseID,
		CreatorID: creatorID,
	}
	if req.Description != nil {
		tryout.Description = *req.Description
	}
	s.applyDuration(tryout, req.DurationMinutes)
	if req.IsPublished != nil && *req.IsPublished {
		now := time.Now()
		tryout.IsPublished = true
		tryout.PublishedAt = &now
	}

	if err := s.TryoutRepo.Create(tryout); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		for i := range *req.Questions {
			if err := s.createQuestion(tryout.ID, &(*req.Questions)[i]); err != nil {
				return nil, err
			}
		}
	}

	return tryout, nil
}

func (s *TryoutService) createQuestion(tryoutID string, qReq *TryoutQuestionReq) error {
	q := &model.TryoutQuestion{
		TryoutID:        tryoutID,
		QuestionType:    qReq.QuestionType,
		Content:         qReq.Content,
		Points:          qReq.Points,
		Required:        qReq.Required,
		AcceptedAnswers: qReq.AcceptedAnswers,
		Explanation:     qReq.Explanation,
		Order:           qReq.Order,
	}
	if err := s.TryoutRepo.CreateQuestion(q); err != nil {
		return err
	}
	for _, oReq := range qReq.Options {
		o := &model.QuestionOption{
			QuestionID: q.ID,
			Content:    oReq.Content,
			IsCorrect:  oReq.IsCorrect,
			Order:      oReq.Order,
		}
		if err := s.TryoutRepo.CreateOption(o); err != nil {
			return err
		}
	}
	return nil
}

func (s *TryoutService) UpdateTryout(tryoutID string, req TryoutReq) (*model.Tryout, error) {
	tryout, err := s.TryoutRepo.FindByID(tryoutID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTryoutNotFound
	} else if err != nil {
		return nil, err
	}

	if req.Title != nil {
		tryout.Title = *req.Title
	}
	if req.Description != nil {
		tryout.Description = *req.Description
	}
	s.applyDuration(tryout, req.DurationMinutes)
	if req.IsPublished != nil && *req.IsPublished != tryout.IsPublished {
		tryout.IsPublished = *req.IsPublished
		if *req.IsPublished {
			now := time.Now()
			tryout.PublishedAt = &now
		}
	}

	if err := s.TryoutRepo.Update(tryout); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		existingQs, err := s.TryoutRepo.ListQuestions(tryoutID)
		if err != nil {
			return nil, err
		}
		existingMap := make(map[string]*model.TryoutQuestion)
		for i := range existingQs {
			existingMap[existingQs[i].ID] = &existingQs[i]
		}

		keptIDs := make(map[string]bool)
		for i := range *req.Questions {
			qReq := &(*req.Questions)[i]
			if err := validateQuestionReq(qReq); err != nil {
				return nil, err
			}

			if qReq.ID != "" {
				q, ok := existingMap[qReq.ID]
				if !ok {
					continue
				}
				q.QuestionType = qReq.QuestionType
				q.Content = qReq.Content
				q.Points = qReq.Points
				q.Required = qReq.Required
				q.AcceptedAnswers = qReq.AcceptedAnswers
				q.Explanation = qReq.Explanation
				q.Order = qReq.Order
				if err := s.TryoutRepo.UpdateQuestion(q); err != nil {
					return nil, err
				}
				if err := s.syncOptions(q.ID, qReq.Options); err != nil {
					return nil, err
				}
				keptIDs[q.ID] = true
			} else {
				if err := s.createQuestion(tryoutID, qReq); err != nil {
					return nil, err
				}
			}
		}

		for id := range existingMap {
			if !keptIDs[id] {
				if err := s.TryoutRepo.DeleteQuestion(id); err != nil {
					return nil, err
				}
			}
		}
	}

	s.invalidateQuestionCache(tryoutID)
	return tryout, nil
}

func (s *TryoutService) syncOptions(questionID string, reqs []TryoutOptionReq) error {
	existing, err := s.TryoutRepo.ListOptions([]string{questionID})
	if err != nil {
		return err
	}
	existingMap := make(map[string]*model.QuestionOption)
	for i := range existing {
		existingMap[existing[i].ID] = &existing[i]
	}

	keptIDs := make(map[string]bool)
	for _, oReq := range reqs {
		if oReq.ID != "" {
			o, ok := existingMap[oReq.ID]
			if !ok {
				continue
			}
			o.Content = oReq.Content
			o.IsCorrect = oReq.IsCorrect
			o.Order = oReq.Order
			if err := s.TryoutRepo.UpdateOption(o); err != nil {
				return err
			}
			keptIDs[o.ID] = true
		} else {
			o := &model.QuestionOption{
				QuestionID: questionID,
				Content:    oReq.Content,
				IsCorrect:  oReq.IsCorrect,
				Order:      oReq.Order,
			}
			if err := s.TryoutRepo.CreateOption(o); err != nil {
				return err
			}
		}
	}

	for id := range existingMap {
		if !keptIDs[id] {
			if err := s.TryoutRepo.DeleteOption(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *TryoutService) DeleteTryout(tryoutID string) error {
	if err := s.TryoutRepo.Delete(tryoutID); err != nil {
		return err
	}
	s.invalidateQuestionCache(tryoutID)
	return nil
}

func (s *TryoutService) GetTryout(tryoutID string) (*model.Tryout, []model.TryoutQuestion, []model.QuestionOption, error) {
	tryout, err := s.TryoutRepo.FindByID(tryoutID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, util.ErrTryoutNotFound
	} else if err != nil {
		return nil, nil, nil, err
	}
	questions, err := s.TryoutRepo.ListQuestions(tryoutID)
	if err != nil {
		return nil, nil, nil, err
	}
	questionIDs := make([]string, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
	}
	options, err := s.TryoutRepo.ListOptions(questionIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	return tryout, questions, options, nil
}

func (s *TryoutService) ListTryouts(courseID uint, page, limit int) ([]repository.TryoutListRow, int64, error) {
	return s.TryoutRepo.ListByCourse(courseID, page, limit)
}

func (s *TryoutService) Publish(tryoutID string, publish bool) (*model.Tryout, error) {
	p := publish
	return s.UpdateTryout(tryoutID, TryoutReq{IsPublished: &p})
}

// ---- 学生视图 ----

type StudentOption struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

type StudentQuestion struct {
	ID           string          `json:"id"`
	QuestionType string          `json:"questionType"`
	Content      string          `json:"content"`
	Points       int             `json:"points"`
	Required     bool            `json:"required"`
	Order        int             `json:"order"`
	Options      []StudentOption `json:"options,omitempty"`
}

type StudentTryoutDetail struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	DurationMinutes *int                 `json:"durationMinutes,omitempty"`
	QuestionCount   int                  `json:"questionCount"`
	// pending, in_progress, completed
	Status           string               `json:"status"`
	Attempt          *model.TryoutAttempt `json:"attempt,omitempty"`
	// 不限时为 -1
	RemainingSeconds int               `json:"remainingSeconds"`
	Questions        []StudentQuestion `json:"questions"`
}

// ListForStudent 已选课程下所有已发布的试卷
func (s *TryoutService) ListForStudent(userID uint) ([]model.Tryout, error) {
	courseIDs, err := s.CourseRepo.EnrolledCourseIDs(userID)
	if err != nil {
		return nil, err
	}
	return s.TryoutRepo.ListPublishedByCourses(courseIDs)
}

// GetStudentDetail 答题页数据：题目不含正确答案，带当前尝试状态与剩余秒数
func (s *TryoutService) GetStudentDetail(userID uint, tryoutID string) (*StudentTryoutDetail, error) {
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

	questions, err := s.studentQuestions(tryoutID)
	if err != nil {
		return nil, err
	}

	detail := &StudentTryoutDetail{
		ID:               tryout.ID,
		Title:            tryout.Title,
		Description:      tryout.Description,
		DurationMinutes:  tryout.DurationMinutes,
		QuestionCount:    len(questions),
		Status:           "pending",
		RemainingSeconds: -1,
		Questions:        questions,
	}
	if tryout.DurationMinutes != nil {
		detail.RemainingSeconds = *tryout.DurationMinutes * 60
	}

	attempts, err := s.AttemptRepo.ListByUser(userID, tryoutID)
	if err != nil {
		return nil, err
	}
	for i := range attempts {
		a := &attempts[i]
		if !a.IsCompleted {
			detail.Status = "in_progress"
			detail.Attempt = a
			detail.RemainingSeconds = RemainingSeconds(a.StartedAt, tryout.DurationMinutes, time.Now())
			break
		}
		if detail.Attempt == nil {
			detail.Status = "completed"
			detail.Attempt = a
			detail.RemainingSeconds = 0
		}
	}

	return detail, nil
}

// studentQuestions 学生端题目视图，Redis 缓存一份脱敏后的题目列表
func (s *TryoutService) studentQuestions(tryoutID string) ([]StudentQuestion, error) {
	ctx := context.Background()
	key := studentQuestionsKeyPrefix + tryoutID

	if s.Redis != nil {
		// 缓存未命中或故障都降级为直读数据库
		val, err := s.Redis.Get(ctx, key).Result()
		if err == nil {
			var cached []StudentQuestion
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	questions, err := s.TryoutRepo.ListQuestions(tryoutID)
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
	optionsByQuestion := make(map[string][]StudentOption)
	for _, o := range options {
		optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], StudentOption{
			ID:      o.ID,
			Content: o.Content,
			Order:   o.Order,
		})
	}

	result := make([]StudentQuestion, len(questions))
	for i, q := range questions {
		result[i] = StudentQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Content:      q.Content,
			Points:       q.Points,
			Required:     q.Required,
			Order:        q.Order,
			Options:      optionsByQuestion[q.ID],
		}
	}

	if s.Redis != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = s.Redis.Set(ctx, key, data, s.cacheTTL()).Err()
		}
	}

	return result, nil
}

func (s *TryoutService) invalidateQuestionCache(tryoutID string) {
	if s.Redis == nil {
		return
	}
	s.Redis.Del(context.Background(), studentQuestionsKeyPrefix+tryoutID)
}

// ---- 教师端答卷管理 ----

func (s *TryoutService) ListAttempts(tryoutID string, page, limit int, studentName string) ([]repository.AttemptListRow, int64, error) {
	return s.AttemptRepo.ListByTryout(tryoutID, page, limit, studentName)
}

func (s *TryoutService) GetAttemptDetail(attemptID string) (map[string]interface{}, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	} else if err != nil {
		return nil, err
	}
	answers, err := s.AttemptRepo.GetAnswers(attemptID)
	if err != nil {
		return nil, err
	}
	tryout, questions, options, err := s.GetTryout(attempt.TryoutID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"attempt":   attempt,
		"answers":   answers,
		"tryout":    tryout,
		"questions": questions,
		"options":   options,
	}, nil
}

// ResetAttempt 删除答卷，允许学生重考
func (s *TryoutService) ResetAttempt(attemptID string) error {
	if _, err := s.AttemptRepo.FindByID(attemptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		}
		return err
	}
	return s.AttemptRepo.Delete(attemptID)
}

func (s *TryoutService) AttemptStats(tryoutID string) (*repository.AttemptStats, error) {
	if _, err := s.TryoutRepo.FindByID(tryoutID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTryoutNotFound
		}
		return nil, err
	}
	return s.AttemptRepo.Stats(tryoutID)
}
