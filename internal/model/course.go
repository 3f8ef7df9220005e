package model

// swagger:model Course
type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	TeacherID   uint   `gorm:"index;type:bigint unsigned" json:"teacherId"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`
}

func (Course) TableName() string {
	return "courses"
}

// Enrollment 学生选课记录，同一学生同一课程只允许一条
type Enrollment struct {
	BaseModel
	CourseID uint `gorm:"index:idx_course_user,unique;type:bigint unsigned" json:"courseId"`
	UserID   uint `gorm:"index:idx_course_user,unique;type:bigint unsigned" json:"userId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
