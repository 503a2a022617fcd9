package request

// CreateUserRequest 管理端创建用户
// 先在 IdP 创建主体拿到 subjectId，再落本地影子行
type CreateUserRequest struct {
	UserName  string `json:"userName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Role      string `json:"role"`
	JobTitle  string `json:"jobTitle"`
	Phone     string `json:"phone"`
}

// UpdateUserRequest 更新用户资料
// 画像字段回写 IdP，业务补充字段落本地
type UpdateUserRequest struct {
	UserName  string `json:"userName"`
	Email     string `json:"email" binding:"omitempty,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	JobTitle  string `json:"jobTitle"`
	Phone     string `json:"phone"`
}
