package service

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/internal/model"
	"tryout_backend/internal/repository"
	"tryout_backend/pkg/database"
	"tryout_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 集成测试需要真实 MySQL:
//
//	TRYOUT_INTEGRATION=1 TRYOUT_TEST_DSN="root:root@tcp(127.0.0.1:3306)/tryout_test?charset=utf8mb4&parseTime=true&loc=Local" go test ./internal/service/
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("TRYOUT_INTEGRATION") != "1" {
		t.Skip("set TRYOUT_INTEGRATION=1 to run integration tests")
	}
	dsn := os.Getenv("TRYOUT_TEST_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(127.0.0.1:3306)/tryout_test?charset=utf8mb4&parseTime=true&loc=Local"
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

type testFixture struct {
	db      *gorm.DB
	svc     *AttemptService
	user    *model.User
	tryout  *model.Tryout
	single  *model.TryoutQuestion
	correct *model.QuestionOption
	short   *model.TryoutQuestion
}

func newTestFixture(t *testing.T, durationMinutes *int) *testFixture {
	t.Helper()

	db := openTestDB(t)
	logger.InitLogger(&config.Config{})

	cfg := &config.Config{}
	cfg.Tryout.GraceSeconds = 0

	attemptRepo := repository.NewAttemptRepository(db)
	tryoutRepo := repository.NewTryoutRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	svc := NewAttemptService(attemptRepo, tryoutRepo, courseRepo, cfg, db)

	suffix := time.Now().UnixNano()

	user := &model.User{
		Name:     "集成测试学生",
		Email:    fmt.Sprintf("itest_%d@example.test", suffix),
		Password: "hash",
		Role:     model.Student,
	}
	require.NoError(t, db.Create(user).Error)

	course := &model.Course{Title: fmt.Sprintf("集成测试课程 %d", suffix), IsActive: true}
	require.NoError(t, db.Create(course).Error)
	require.NoError(t, db.Create(&model.Enrollment{CourseID: course.ID, UserID: user.ID}).Error)

	now := time.Now()
	tryout := &model.Tryout{
		CourseID:        course.ID,
		Title:           "集成测试试卷",
		DurationMinutes: durationMinutes,
		IsPublished:     true,
		PublishedAt:     &now,
	}
	require.NoError(t, db.Create(tryout).Error)

	single := &model.TryoutQuestion{
		TryoutID:     tryout.ID,
		QuestionType: model.QuestionSingleChoice,
		Content:      "1+1=?",
		Points:       5,
		Order:        1,
	}
	require.NoError(t, db.Create(single).Error)

	correct := &model.QuestionOption{QuestionID: single.ID, Content: "2", IsCorrect: true, Order: 1}
	require.NoError(t, db.Create(correct).Error)
	require.NoError(t, db.Create(&model.QuestionOption{QuestionID: single.ID, Content: "3", Order: 2}).Error)

	short := &model.TryoutQuestion{
		TryoutID:        tryout.ID,
		QuestionType:    model.QuestionShortAnswer,
		Content:         "首都是哪里？",
		Points:          3,
		AcceptedAnswers: json.RawMessage(`["Jakarta"]`),
		Order:           2,
	}
	require.NoError(t, db.Create(short).Error)

	return &testFixture{
		db:      db,
		svc:     svc,
		user:    user,
		tryout:  tryout,
		single:  single,
		correct: correct,
		short:   short,
	}
}

func TestStartAttemptIdempotent_DBIntegration(t *testing.T) {
	f := newTestFixture(t, nil)

	first, err := f.svc.StartAttempt(f.user.ID, f.tryout.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, first.MaxScore)
	assert.False(t, first.IsCompleted)

	// 重复 start 返回同一条未交卷尝试
	second, err := f.svc.StartAttempt(f.user.ID, f.tryout.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.db.Model(&model.TryoutAttempt{}).
		Where("user_id = ? AND tryout_id = ? AND is_completed = ?", f.user.ID, f.tryout.ID, false).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStartAttemptConcurrent_DBIntegration(t *testing.T) {
	f := newTestFixture(t, nil)

	// 并发 start 同一份试卷，试卷行锁应串行化为恰好一条未交卷尝试
	const workers = 8
	ids := make(chan string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt, err := f.svc.StartAttempt(f.user.ID, f.tryout.ID)
			if err != nil {
				errs <- err
				return
			}
			ids <- attempt.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent start failed: %v", err)
	}

	seen := make(map[string]bool)
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)

	var count int64
	require.NoError(t, f.db.Model(&model.TryoutAttempt{}).
		Where("user_id = ? AND tryout_id = ? AND is_completed = ?", f.user.ID, f.tryout.ID, false).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmitAnswerUpsert_DBIntegration(t *testing.T) {
	f := newTestFixture(t, nil)

	attempt, err := f.svc.StartAttempt(f.user.ID, f.tryout.ID)
	require.NoError(t, err)

	first, err := f.svc.SubmitAnswer(f.user.ID, attempt.ID, f.short.ID, "Bandung")
	require.NoError(t, err)

	// 同题重复提交覆盖旧值
	second, err := f.svc.SubmitAnswer(f.user.ID, attempt.ID, f.short.ID, "Jakarta")
	require.NoError(t, err)

	var answers []model.TryoutAnswer
	require.NoError(t, f.db.Where("attempt_id = ? AND question_id = ?", attempt.ID, f.short.ID).
		Find(&answers).Error)
	require.Len(t, answers, 1)
	assert.Equal(t, "Jakarta", answers[0].Value)

	// 返回值的 ID 始终指向持久化的那一行
	assert.Equal(t, answers[0].ID, first.ID)
	assert.Equal(t, answers[0].ID, second.ID)
	assert.Equal(t, "Jakarta", second.Value)
}

func TestCompleteAttemptScoringAndIdempotence_DBIntegration(t *testing.T) {
	f := newTestFixture(t, nil)

	attempt, err := f.svc.StartAttempt(f.user.ID, f.tryout.ID)
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(f.user.ID, attempt.ID, f.single.ID, f.correct.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(f.user.ID, attempt.ID, f.short.ID, " jakarta ")
	require.NoError(t, err)

	completed, err := f.svc.CompleteAttempt(f.user.ID, attempt.ID)
	require.NoError(t, err)
	assert.True(t, completed.IsCompleted)
	assert.Equal(t, 8, completed.Score)
	assert.False(t, completed.NeedsManual)
	require.NotNil(t, completed.EndedAt)

	// 重复交卷幂等，不改结果
	again, err := f.svc.CompleteAttempt(f.user.ID, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, completed.Score, again.Score)
	assert.WithinDuration(t, *completed.EndedAt, *again.EndedAt, time.Second)

	// 交卷后不能再作答
	_, err = f.svc.SubmitAnswer(f.user.ID, attempt.ID, f.short.ID, "late")
	assert.Error(t, err)

	// 成绩单
	result, err := f.svc.GetAttemptResults(f.user.ID, attempt.ID)
	require.NoError(t, err)
	assert.Len(t, result.Questions, 2)
}

func TestSweepExpiredAutoSubmits_DBIntegration(t *testing.T) {
	f := newTestFixture(t, nil)

	thirty := 30
	require.NoError(t, f.db.Model(&model.Tryout{}).Where("id = ?", f.tryout.ID).
		Update("duration_minutes", thirty).Error)

	attempt, err := f.svc.StartAttempt(f.user.ID, f.tryout.ID)
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(f.user.ID, attempt.ID, f.single.ID, f.correct.ID)
	require.NoError(t, err)

	// 把开始时间拨回到限时之外
	require.NoError(t, f.db.Model(&model.TryoutAttempt{}).Where("id = ?", attempt.ID).
		Update("started_at", time.Now().Add(-40*time.Minute)).Error)

	count, err := f.svc.SweepExpired()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)

	var reloaded model.TryoutAttempt
	require.NoError(t, f.db.First(&reloaded, "id = ?", attempt.ID).Error)
	assert.True(t, reloaded.IsCompleted)
	assert.True(t, reloaded.IsTimeout)
	assert.Equal(t, 5, reloaded.Score)
}
