package repository

import (
	"tryout_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TryoutRepository struct {
	DB *gorm.DB
}

func NewTryoutRepository(db *gorm.DB) *TryoutRepository {
	return &TryoutRepository{DB: db}
}

func (r *TryoutRepository) Create(tryout *model.Tryout) error {
	return r.DB.Create(tryout).Error
}

func (r *TryoutRepository) FindByID(id string) (*model.Tryout, error) {
	var tryout model.Tryout
	err := r.DB.First(&tryout, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tryout, nil
}

// FindByIDForUpdate 在事务内加行锁读取，开始答题时用于串行化同一份试卷的并发 start
func (r *TryoutRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*model.Tryout, error) {
	var tryout model.Tryout
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tryout, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tryout, nil
}

func (r *TryoutRepository) Update(tryout *model.Tryout) error {
	return r.DB.Save(tryout).Error
}

func (r *TryoutRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []string
		if err := tx.Model(&model.TryoutQuestion{}).Where("tryout_id = ?", id).
			Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.QuestionOption{}).Error; err != nil {
				return err
			}
			if err := tx.Where("tryout_id = ?", id).Delete(&model.TryoutQuestion{}).Error; err != nil {
				return err
			}
		}
		var attemptIDs []string
		if err := tx.Model(&model.TryoutAttempt{}).Where("tryout_id = ?", id).
			Pluck("id", &attemptIDs).Error; err != nil {
			return err
		}
		if len(attemptIDs) > 0 {
			if err := tx.Where("attempt_id IN ?", attemptIDs).Delete(&model.TryoutAnswer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("tryout_id = ?", id).Delete(&model.TryoutAttempt{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Tryout{}, "id = ?", id).Error
	})
}

type TryoutListRow struct {
	model.Tryout
	QuestionCount  int `json:"questionCount"`
	CompletedCount int `json:"completedCount"`
}

func (r *TryoutRepository) ListByCourse(courseID uint, page, limit int) ([]TryoutListRow, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Tryout{}).Where("course_id = ?", courseID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []TryoutListRow
	query := r.DB.Table("tryouts t").
		Select("t.*, "+
			"(SELECT COUNT(*) FROM tryout_questions q WHERE q.tryout_id = t.id AND q.deleted_at IS NULL) as question_count, "+
			"(SELECT COUNT(*) FROM tryout_attempts a WHERE a.tryout_id = t.id AND a.deleted_at IS NULL AND a.is_completed = 1) as completed_count").
		Where("t.course_id = ? AND t.deleted_at IS NULL", courseID)

	if limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("t.created_at desc").Scan(&rows).Error
	return rows, total, err
}

func (r *TryoutRepository) ListPublishedByCourses(courseIDs []uint) ([]model.Tryout, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var tryouts []model.Tryout
	err := r.DB.Where("course_id IN ? AND is_published = ?", courseIDs, true).
		Order("published_at desc").Find(&tryouts).Error
	return tryouts, err
}

func (r *TryoutRepository) FindQuestionByID(id string) (*model.TryoutQuestion, error) {
	var q model.TryoutQuestion
	err := r.DB.First(&q, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *TryoutRepository) CreateQuestion(q *model.TryoutQuestion) error {
	return r.DB.Create(q).Error
}

func (r *TryoutRepository) UpdateQuestion(q *model.TryoutQuestion) error {
	return r.DB.Save(q).Error
}

func (r *TryoutRepository) DeleteQuestion(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.QuestionOption{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.TryoutQuestion{}, "id = ?", id).Error
	})
}

func (r *TryoutRepository) ListQuestions(tryoutID string) ([]model.TryoutQuestion, error) {
	var qs []model.TryoutQuestion
	err := r.DB.Where("tryout_id = ?", tryoutID).Order("`order` asc, created_at asc").Find(&qs).Error
	return qs, err
}

func (r *TryoutRepository) CreateOption(o *model.QuestionOption) error {
	return r.DB.Create(o).Error
}

func (r *TryoutRepository) UpdateOption(o *model.QuestionOption) error {
	return r.DB.Save(o).Error
}

func (r *TryoutRepository) DeleteOption(id string) error {
	return r.DB.Delete(&model.QuestionOption{}, "id = ?", id).Error
}

func (r *TryoutRepository) ListOptions(questionIDs []string) ([]model.QuestionOption, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var opts []model.QuestionOption
	err := r.DB.Where("question_id IN ?", questionIDs).Order("`order` asc, created_at asc").Find(&opts).Error
	return opts, err
}
