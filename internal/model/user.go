package model

import (
	"time"
)

type UserRole string

const (
	Employee UserRole = "employee" // 员工（提问方）
	Agent    UserRole = "agent"    // 人工坐席
	Admin    UserRole = "admin"    // 管理员/质检
)

// swagger:model User
type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;unique;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;default:'employee'" json:"role"`
	Disabled  bool      `gorm:"default:false" json:"disabled"`
	LastLogin time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
