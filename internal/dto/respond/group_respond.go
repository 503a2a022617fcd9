package respond

// GroupMemberRespond 群成员响应
type GroupMemberRespond struct {
	UserId   uint   `json:"userId"`
	Nickname string `json:"nickname,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
}

// GroupRespond 群组响应
type GroupRespond struct {
	Id          uint                 `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	IsClosed    bool                 `json:"isClosed"`
	Members     []GroupMemberRespond `json:"members,omitempty"`
}
