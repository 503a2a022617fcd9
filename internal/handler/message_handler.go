// Package handler 提供 HTTP 请求处理器
// 本文件处理消息相关的 API 请求
package handler

import (
	"net/http"
	"strconv"

	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/infrastructure/middleware"
	"qu2data_server/internal/service"
	"qu2data_server/pkg/constants"
	"qu2data_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
	userSvc    service.UserService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageSvc service.MessageService, userSvc service.UserService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc, userSvc: userSvc}
}

// checkSenderBinding 校验请求声明的用户ID与令牌主体一致
// 主体在本地没有影子行时放行（服务账号、后台工具不落库）
func (h *MessageHandler) checkSenderBinding(c *gin.Context, claimedId uint) error {
	subjectId := c.GetString(middleware.CtxSubjectId)
	if subjectId == "" {
		return nil
	}
	localId, err := h.userSvc.ResolveLocalId(c.Request.Context(), subjectId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil
		}
		return err
	}
	if localId != claimedId {
		return errorx.New(errorx.CodeUnauthorized, "l'identifiant fourni ne correspond pas au jeton")
	}
	return nil
}

// parseUintParam 解析路径参数为 uint
func parseUintParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errorx.Newf(errorx.CodeInvalidParam, "paramètre %s invalide", name)
	}
	return uint(v), nil
}

// parseUintQuery 解析查询参数为 uint
func parseUintQuery(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, errorx.Newf(errorx.CodeInvalidParam, "paramètre %s manquant", name)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errorx.Newf(errorx.CodeInvalidParam, "paramètre %s invalide", name)
	}
	return uint(v), nil
}

// extractUpload 从 multipart 表单取出单个附件
// 文件字段可选，超出大小上限直接拒绝
func extractUpload(c *gin.Context) (*service.Upload, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, errorx.Wrap(err, errorx.CodeInvalidParam, "fichier invalide")
	}
	if fileHeader.Size > constants.FILE_MAX_SIZE {
		return nil, errorx.New(errorx.CodeInvalidParam, "fichier trop volumineux")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeInvalidParam, "impossible de lire le fichier")
	}
	return &service.Upload{Name: fileHeader.Filename, Reader: f}, nil
}

// SendPrivateMessage 发送私聊消息（无附件）
// POST /messages
func (h *MessageHandler) SendPrivateMessage(c *gin.Context) {
	var req request.SendPrivateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.checkSenderBinding(c, req.SentById); err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.SendPrivate(c.Request.Context(), req, nil)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, data)
}

// SendPrivateMessageWithAttachment 发送带附件的私聊消息
// POST /messages/with-attachment (multipart)
func (h *MessageHandler) SendPrivateMessageWithAttachment(c *gin.Context) {
	var req request.SendPrivateMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.checkSenderBinding(c, req.SentById); err != nil {
		HandleError(c, err)
		return
	}
	upload, err := extractUpload(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.SendPrivate(c.Request.Context(), req, upload)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, data)
}

// SendGroupMessage 发送群聊消息（附件可选）
// POST /messages/group (multipart)
func (h *MessageHandler) SendGroupMessage(c *gin.Context) {
	var req request.SendGroupMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.checkSenderBinding(c, req.SentById); err != nil {
		HandleError(c, err)
		return
	}
	upload, err := extractUpload(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.SendGroup(c.Request.Context(), req, upload)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, data)
}

// UpdateMessage 编辑消息内容
// PUT /messages/:id
func (h *MessageHandler) UpdateMessage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	var req request.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.UpdateContent(c.Request.Context(), id, req.Content)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// DeleteMessage 软删除消息
// PUT /messages/delete/:id
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.Delete(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetMessagesBetween 两个用户之间的私聊记录
// GET /messages/between?user1=&user2=
func (h *MessageHandler) GetMessagesBetween(c *gin.Context) {
	userOne, err := parseUintQuery(c, "user1")
	if err != nil {
		HandleError(c, err)
		return
	}
	userTwo, err := parseUintQuery(c, "user2")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.GetBetween(c.Request.Context(), userOne, userTwo)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetGroupMessages 群聊记录
// GET /messages/group/:groupId
func (h *MessageHandler) GetGroupMessages(c *gin.Context) {
	groupId, err := parseUintParam(c, "groupId")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.GetGroupMessages(c.Request.Context(), groupId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetConversationUsers 会话列表
// GET /messages/conversation-users?currentUserId=
func (h *MessageHandler) GetConversationUsers(c *gin.Context) {
	userId, err := parseUintQuery(c, "currentUserId")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.ConversationList(c.Request.Context(), userId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetUnreadPrivate 收件箱角标：按发送者统计未读私聊数
// GET /messages/unread/private/:uid
func (h *MessageHandler) GetUnreadPrivate(c *gin.Context) {
	userId, err := parseUintParam(c, "uid")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.UnreadBySender(c.Request.Context(), userId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetUnseenSent 发件回执：按接收者统计对方未读数
// GET /messages/unseen-sent/:uid
func (h *MessageHandler) GetUnseenSent(c *gin.Context) {
	userId, err := parseUintParam(c, "uid")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.UnseenByReceiver(c.Request.Context(), userId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetUnreadGroups 按群统计未读数
// GET /messages/unread/groups/:uid
func (h *MessageHandler) GetUnreadGroups(c *gin.Context) {
	userId, err := parseUintParam(c, "uid")
	if err != nil {
		HandleError(c, err)
		return
	}
	data, err := h.messageSvc.UnreadByGroup(c.Request.Context(), userId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// MarkReadPrivate 前移私聊读水位
// PUT /messages/mark-read/private?currentUserId=&otherUserKeycloakId=
func (h *MessageHandler) MarkReadPrivate(c *gin.Context) {
	userId, err := parseUintQuery(c, "currentUserId")
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.checkSenderBinding(c, userId); err != nil {
		HandleError(c, err)
		return
	}
	peerSubjectId := c.Query("otherUserKeycloakId")
	if peerSubjectId == "" {
		HandleError(c, errorx.New(errorx.CodeInvalidParam, "paramètre otherUserKeycloakId manquant"))
		return
	}
	if err := h.messageSvc.MarkPrivateRead(c.Request.Context(), userId, peerSubjectId); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, nil)
}

// MarkReadGroup 前移群聊读水位
// PUT /messages/mark-read/group?currentUserId=&groupId=
func (h *MessageHandler) MarkReadGroup(c *gin.Context) {
	userId, err := parseUintQuery(c, "currentUserId")
	if err != nil {
		HandleError(c, err)
		return
	}
	groupId, err := parseUintQuery(c, "groupId")
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.checkSenderBinding(c, userId); err != nil {
		HandleError(c, err)
		return
	}
	if err := h.messageSvc.MarkGroupRead(c.Request.Context(), userId, groupId); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, nil)
}

// MarkAsSeen 把对端发来的私聊消息全部标记为已读
// PUT /messages/mark-as-seen?currentUserId=&otherUserId=
func (h *MessageHandler) MarkAsSeen(c *gin.Context) {
	userId, err := parseUintQuery(c, "currentUserId")
	if err != nil {
		HandleError(c, err)
		return
	}
	otherUserId, err := parseUintQuery(c, "otherUserId")
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.checkSenderBinding(c, userId); err != nil {
		HandleError(c, err)
		return
	}
	if err := h.messageSvc.MarkMessagesSeen(c.Request.Context(), userId, otherUserId); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, nil)
}
