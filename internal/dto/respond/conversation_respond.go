package respond

import "time"

// ConversationEntry 会话列表条目
// type 为 "user" 时填用户侧字段，为 "group" 时填群组侧字段
// 列表按 lastMessageTime 降序，与前端约定的字段名保持一致
type ConversationEntry struct {
	Type string `json:"type"` // "user" 或 "group"

	// 私聊会话字段
	PostgresId uint   `json:"postgresId,omitempty"`
	IdKeycloak string `json:"idKeycloak,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`

	// 群聊会话字段
	GroupId uint   `json:"groupId,omitempty"`
	Name    string `json:"name,omitempty"`

	LastMessageTime time.Time `json:"lastMessageTime"`
}
