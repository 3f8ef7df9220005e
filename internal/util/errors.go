package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")

	ErrCourseNotFound  = errors.New("course not found")
	ErrNotEnrolled     = errors.New("not enrolled in course")
	ErrAlreadyEnrolled = errors.New("already enrolled in course")

	ErrTryoutNotFound    = errors.New("tryout not found or not published")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptCompleted  = errors.New("attempt already completed")
	ErrAttemptInProgress = errors.New("attempt not yet completed")
	ErrInvalidAnswer     = errors.New("invalid answer payload")
)
