package entity

import "time"

// User 系统用户（审批人目录）
type User struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Username string `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Name     string `json:"name" gorm:"size:100;not null"`
	Email    string `json:"email" gorm:"size:200"`
	Phone    string `json:"phone" gorm:"size:50"`

	// 角色编码，审批规则按角色解析合格审批人
	Role       string `json:"role" gorm:"size:50;index"` // procurement/finance_manager/finance_director/gm/pharmacist
	Department string `json:"department" gorm:"size:100"`

	Status    string    `json:"status" gorm:"size:20;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "dir_users"
}

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)
