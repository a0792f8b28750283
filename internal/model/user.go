// Package model 包含了应用的数据模型定义。
package model

// User 代表一次请求所解析出的调用者身份。
type User struct {
	ID     string   `json:"id"`
	Email  string   `json:"email,omitempty"`
	Groups []string `json:"groups"`
}

// HasGroup 判断用户是否属于指定的组。
func (u *User) HasGroup(group string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// DefaultUser 是未配置 jwt.secret 时所有请求使用的身份。
func DefaultUser() *User {
	return &User{
		ID:     "default_user",
		Email:  "default@example.com",
		Groups: []string{"admin", "user"},
	}
}

// AnonymousUser 是配置了 jwt.secret 但请求未携带 token 时使用的身份，不属于 admin 组。
func AnonymousUser() *User {
	return &User{ID: "anonymous", Groups: []string{"user"}}
}

// AdminUser 返回启动训练阶段写入记忆所使用的特权身份，仅用于授权写入。
func AdminUser() *User {
	return &User{ID: "admin", Groups: []string{"admin"}}
}
