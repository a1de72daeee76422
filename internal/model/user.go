package model

// UserRole 由认证服务在 JWT 中下发
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
