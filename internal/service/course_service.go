package service

import (
	"errors"

	"tryout_backend/internal/model"
	"tryout_backend/internal/repository"
	"tryout_backend/internal/util"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
}

func NewCourseService(courseRepo *repository.CourseRepository) *CourseService {
	return &CourseService{CourseRepo: courseRepo}
}

type CourseReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (s *CourseService) CreateCourse(teacherID uint, req CourseReq) (*model.Course, error) {
	course := &model.Course{
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   teacherID,
		IsActive:    true,
	}
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) GetCourse(courseID uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	} else if err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListCourses(page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.List(page, limit)
}

// Enroll 学生选课，重复选课返回冲突错误
func (s *CourseService) Enroll(courseID, userID uint) error {
	course, err := s.CourseRepo.FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrCourseNotFound
	} else if err != nil {
		return err
	}
	if !course.IsActive {
		return util.ErrCourseNotFound
	}

	enrolled, err := s.CourseRepo.IsEnrolled(courseID, userID)
	if err != nil {
		return err
	}
	if enrolled {
		return util.ErrAlreadyEnrolled
	}

	return s.CourseRepo.Enroll(&model.Enrollment{CourseID: courseID, UserID: userID})
}
