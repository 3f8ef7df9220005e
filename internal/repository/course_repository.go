package repository

import (
	"tryout_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	if err := r.DB.First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) List(page, limit int) ([]model.Course, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Course{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []model.Course
	offset := (page - 1) * limit
	err := r.DB.Order("created_at desc").Offset(offset).Limit(limit).Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) Enroll(enrollment *model.Enrollment) error {
	return r.DB.Create(enrollment).Error
}

func (r *CourseRepository) IsEnrolled(courseID, userID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *CourseRepository) EnrolledCourseIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Enrollment{}).
		Where("user_id = ?", userID).
		Pluck("course_id", &ids).Error
	return ids, err
}
