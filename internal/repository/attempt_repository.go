package repository

import (
	"time"

	"tryout_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(tx *gorm.DB, attempt *model.TryoutAttempt) error {
	return tx.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.TryoutAttempt, error) {
	var a model.TryoutAttempt
	if err := r.DB.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIDForUpdate 交卷事务内加行锁读取，防止重复计分
func (r *AttemptRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*model.TryoutAttempt, error) {
	var a model.TryoutAttempt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) FindActive(tx *gorm.DB, userID uint, tryoutID string) (*model.TryoutAttempt, error) {
	var a model.TryoutAttempt
	err := tx.Where("user_id = ? AND tryout_id = ? AND is_completed = ?", userID, tryoutID, false).
		Order("started_at desc").First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) ListByUser(userID uint, tryoutID string) ([]model.TryoutAttempt, error) {
	var attempts []model.TryoutAttempt
	err := r.DB.Where("user_id = ? AND tryout_id = ?", userID, tryoutID).
		Order("started_at desc").Find(&attempts).Error
	return attempts, err
}

// UpsertAnswer 以 (attempt_id, question_id) 为键写入作答，重复提交覆盖旧值
func (r *AttemptRepository) UpsertAnswer(answer *model.TryoutAnswer) error {
	err := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(answer).Error
	if err != nil {
		return err
	}
	// 冲突更新路径下 BeforeCreate 已给内存结构生成了新 UUID，
	// 持久化行保留的是旧 ID，重新读回保证返回值与库中一致
	return r.DB.Where("attempt_id = ? AND question_id = ?", answer.AttemptID, answer.QuestionID).
		First(answer).Error
}

func (r *AttemptRepository) GetAnswers(attemptID string) ([]model.TryoutAnswer, error) {
	var answers []model.TryoutAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) SaveAnswers(tx *gorm.DB, answers []model.TryoutAnswer) error {
	for i := range answers {
		if err := tx.Save(&answers[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindExpired 返回限时已过（含宽限期）仍未交卷的尝试，供后台自动交卷
func (r *AttemptRepository) FindExpired(grace time.Duration, limit int) ([]model.TryoutAttempt, error) {
	now := time.Now()
	var attempts []model.TryoutAttempt
	err := r.DB.Table("tryout_attempts a").
		Joins("JOIN tryouts t ON t.id = a.tryout_id").
		Where("a.is_completed = ? AND a.deleted_at IS NULL", false).
		Where("t.duration_minutes IS NOT NULL AND t.duration_minutes > 0").
		Where("TIMESTAMPADD(MINUTE, t.duration_minutes, a.started_at) < ?", now.Add(-grace)).
		Limit(limit).
		Select("a.*").
		Scan(&attempts).Error
	return attempts, err
}

type AttemptListRow struct {
	model.TryoutAttempt
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

func (r *AttemptRepository) ListByTryout(tryoutID string, page, limit int, studentName string) ([]AttemptListRow, int64, error) {
	query := r.DB.Table("tryout_attempts a").
		Select("a.*, u.name as user_name, u.email as user_email").
		Joins("JOIN users u ON a.user_id = u.id").
		Where("a.tryout_id = ? AND a.deleted_at IS NULL", tryoutID)

	if studentName != "" {
		query = query.Where("u.name LIKE ?", "%"+studentName+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []AttemptListRow
	offset := (page - 1) * limit
	err := query.Order("a.created_at desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}

func (r *AttemptRepository) Delete(attemptID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("attempt_id = ?", attemptID).Delete(&model.TryoutAnswer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.TryoutAttempt{}, "id = ?", attemptID).Error
	})
}

type AttemptStats struct {
	AttemptCount   int64   `json:"attemptCount"`
	CompletedCount int64   `json:"completedCount"`
	AverageScore   float64 `json:"averageScore"`
	BestScore      int     `json:"bestScore"`
}

func (r *AttemptRepository) Stats(tryoutID string) (*AttemptStats, error) {
	var stats AttemptStats
	if err := r.DB.Model(&model.TryoutAttempt{}).
		Where("tryout_id = ?", tryoutID).
		Count(&stats.AttemptCount).Error; err != nil {
		return nil, err
	}
	err := r.DB.Model(&model.TryoutAttempt{}).
		Where("tryout_id = ? AND is_completed = ?", tryoutID, true).
		Select("COUNT(*) as completed_count, COALESCE(AVG(score), 0) as average_score, COALESCE(MAX(score), 0) as best_score").
		Scan(&stats).Error
	return &stats, err
}
