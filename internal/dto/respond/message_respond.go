package respond

import (
	"time"

	"qu2data_server/internal/model"
)

// AttachmentRespond 附件响应
type AttachmentRespond struct {
	Id          uint   `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Size        int64  `json:"size"`
	StoragePath string `json:"storagePath"`
}

// MessageRespond 消息响应
// 使用位置:
//   - internal/service/message: 各读写操作的返回值
//   - internal/service/push: 推送事件的负载
type MessageRespond struct {
	Id           uint                `json:"id"`
	Content      string              `json:"content"`
	Timestamp    time.Time           `json:"timestamp"`
	IsDeleted    bool                `json:"isDeleted"`
	IsUpdated    bool                `json:"isUpdated"`
	SenderName   string              `json:"senderName,omitempty"`
	SentById     uint                `json:"sentById"`
	ReceivedById *uint               `json:"receivedById,omitempty"`
	GroupId      *uint               `json:"groupId,omitempty"`
	SeenBy       []uint              `json:"seenBy"`
	Attachments  []AttachmentRespond `json:"attachments"`
}

// NewMessageRespond 由模型构建响应
func NewMessageRespond(m *model.Message) MessageRespond {
	seenBy := make([]uint, 0, len(m.SeenBy))
	for _, u := range m.SeenBy {
		seenBy = append(seenBy, u.ID)
	}
	attachments := make([]AttachmentRespond, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, AttachmentRespond{
			Id:          a.ID,
			Name:        a.Name,
			MimeType:    a.MimeType,
			Size:        a.Size,
			StoragePath: a.StoragePath,
		})
	}
	return MessageRespond{
		Id:           m.ID,
		Content:      m.Content,
		Timestamp:    m.Timestamp,
		IsDeleted:    m.IsDeleted,
		IsUpdated:    m.IsUpdated,
		SenderName:   m.SenderName,
		SentById:     m.SenderId,
		ReceivedById: m.ReceiverId,
		GroupId:      m.GroupId,
		SeenBy:       seenBy,
		Attachments:  attachments,
	}
}
