package request

// SendPrivateMessageRequest 发送私聊消息
// 无附件走 JSON 请求体，带附件走 multipart 表单，字段名一致
// 使用位置:
//   - internal/handler/message_handler.go: SendPrivateMessage / SendPrivateMessageWithAttachment
type SendPrivateMessageRequest struct {
	Content      string `json:"content" form:"content"`
	SentById     uint   `json:"sentById" form:"sentById" binding:"required"`
	ReceivedById uint   `json:"receivedById" form:"receivedById" binding:"required"`
}

// SendGroupMessageRequest 发送群聊消息
// 附件走 multipart 表单，此结构承载表单中的文本字段
type SendGroupMessageRequest struct {
	Content  string `form:"content"`
	SentById uint   `form:"sentById" binding:"required"`
	GroupId  uint   `form:"groupId" binding:"required"`
}
