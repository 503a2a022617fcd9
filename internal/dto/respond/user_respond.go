package respond

// UserRespond 用户响应
// 展示字段（姓名、邮箱、用户名）来自 IdP，本地只有补充字段
type UserRespond struct {
	Id         uint   `json:"id"`
	IdKeycloak string `json:"idKeycloak"`
	UserName   string `json:"userName,omitempty"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	JobTitle   string `json:"jobTitle,omitempty"`
	Phone      string `json:"phone,omitempty"`
}
