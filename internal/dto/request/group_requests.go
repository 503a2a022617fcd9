package request

// CreateGroupRequest 创建群组
// 创建者自动成为第一个成员并获得管理员身份
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	IsClosed    bool   `json:"isClosed"`
	CreatorId   uint   `json:"creatorId" binding:"required"`
}

// UpdateGroupRequest 更新群组信息
type UpdateGroupRequest struct {
	Name        string `json:"name" binding:"max=100"`
	Description string `json:"description" binding:"max=500"`
	IsClosed    *bool  `json:"isClosed"`
}

// AddGroupMemberRequest 添加群成员
type AddGroupMemberRequest struct {
	UserId   uint   `json:"userId" binding:"required"`
	Nickname string `json:"nickname" binding:"max=100"`
	IsAdmin  bool   `json:"isAdmin"`
}
