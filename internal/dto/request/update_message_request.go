package request

// UpdateMessageRequest 编辑消息内容
type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
