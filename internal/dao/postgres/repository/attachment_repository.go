package repository

import (
	"qu2data_server/internal/model"

	"gorm.io/gorm"
)

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository 创建附件 Repository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// Create 创建附件记录
func (r *attachmentRepository) Create(attachment *model.Attachment) error {
	if err := r.db.Create(attachment).Error; err != nil {
		return wrapDBError(err, "创建附件")
	}
	return nil
}

// FindByMessageId 查找消息的全部附件
func (r *attachmentRepository) FindByMessageId(messageId uint) ([]model.Attachment, error) {
	var attachments []model.Attachment
	if err := r.db.Where("message_id = ?", messageId).Order("id ASC").
		Find(&attachments).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询附件 message_id=%d", messageId)
	}
	return attachments, nil
}
