// Package message 实现消息子系统的业务逻辑
// 发送、编辑、软删除、已读核算、会话列表与实时推送的编排都在这里
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"qu2data_server/internal/dao/postgres/repository"
	myredis "qu2data_server/internal/dao/redis"
	"qu2data_server/internal/dto/request"
	"qu2data_server/internal/dto/respond"
	"qu2data_server/internal/infrastructure/filestore"
	"qu2data_server/internal/infrastructure/idp"
	"qu2data_server/internal/model"
	"qu2data_server/internal/service"
	"qu2data_server/internal/service/push"
	"qu2data_server/pkg/constants"
	"qu2data_server/pkg/errorx"
)

// messageService 消息业务逻辑实现
type messageService struct {
	repos    *repository.Repositories
	cache    myredis.AsyncCacheService
	idp      idp.Provider
	store    *filestore.Store
	notifier push.Notifier
}

// NewMessageService 构造函数
func NewMessageService(
	repos *repository.Repositories,
	cache myredis.AsyncCacheService,
	provider idp.Provider,
	store *filestore.Store,
	notifier push.Notifier,
) service.MessageService {
	return &messageService{
		repos:    repos,
		cache:    cache,
		idp:      provider,
		store:    store,
		notifier: notifier,
	}
}

// ==================== 缓存键 ====================

// betweenCacheKey 私聊记录缓存键，ID 排序后拼接保证唯一
func betweenCacheKey(userOneId, userTwoId uint) string {
	if userOneId > userTwoId {
		userOneId, userTwoId = userTwoId, userOneId
	}
	return fmt.Sprintf("message_between_%d_%d", userOneId, userTwoId)
}

// groupCacheKey 群聊记录缓存键
func groupCacheKey(groupId uint) string {
	return fmt.Sprintf("group_messagelist_%d", groupId)
}

// invalidate 异步失效缓存键
func (m *messageService) invalidate(keys ...string) {
	if m.cache == nil {
		return
	}
	m.cache.SubmitTask(func() {
		for _, key := range keys {
			if err := m.cache.Delete(context.Background(), key); err != nil {
				zap.L().Error("cache invalidate error", zap.String("key", key), zap.Error(err))
			}
		}
	})
}

// invalidateFor 失效某条消息涉及的列表缓存
func (m *messageService) invalidateFor(msg *model.Message) {
	if msg.GroupId != nil {
		m.invalidate(groupCacheKey(*msg.GroupId))
	} else if msg.ReceiverId != nil {
		m.invalidate(betweenCacheKey(msg.SenderId, *msg.ReceiverId))
	}
}

// ==================== 发送 ====================

// SendPrivate 发送私聊消息
func (m *messageService) SendPrivate(ctx context.Context, req request.SendPrivateMessageRequest, upload *service.Upload) (*respond.MessageRespond, error) {
	if strings.TrimSpace(req.Content) == "" && upload == nil {
		return nil, errorx.New(errorx.CodeInvalidParam, "le contenu ou une pièce jointe est requis")
	}
	if req.SentById == req.ReceivedById {
		return nil, errorx.New(errorx.CodeInvalidParam, "expéditeur et destinataire identiques")
	}

	sender, err := m.repos.User.FindByID(req.SentById)
	if err != nil {
		return nil, err
	}
	if _, err := m.repos.User.FindByID(req.ReceivedById); err != nil {
		return nil, err
	}

	receiverId := req.ReceivedById
	msg := &model.Message{
		Content:    req.Content,
		Timestamp:  time.Now(),
		SenderId:   req.SentById,
		ReceiverId: &receiverId,
	}

	if err := m.persistWithUpload(msg, upload); err != nil {
		return nil, err
	}
	m.invalidate(betweenCacheKey(req.SentById, receiverId))

	rsp := respond.NewMessageRespond(msg)

	// 推送整条消息给接收者，另发一条短通知横幅
	m.notifier.Publish(push.UserTopic(receiverId), rsp)
	firstName := m.idp.GetUser(ctx, sender.SubjectId).FirstName
	if firstName == "" {
		firstName = constants.PLACEHOLDER_FIRST_NAME
	}
	m.notifier.Publish(push.NotificationTopic(receiverId), "Nouveau message de "+firstName)

	return &rsp, nil
}

// SendGroup 发送群聊消息
// 发送者姓名在写入时解析一次并留快照，历史消息不依赖 IdP 可用性
func (m *messageService) SendGroup(ctx context.Context, req request.SendGroupMessageRequest, upload *service.Upload) (*respond.MessageRespond, error) {
	if strings.TrimSpace(req.Content) == "" && upload == nil {
		return nil, errorx.New(errorx.CodeInvalidParam, "le contenu ou une pièce jointe est requis")
	}

	sender, err := m.repos.User.FindByID(req.SentById)
	if err != nil {
		return nil, err
	}
	if _, err := m.repos.Group.FindByID(req.GroupId); err != nil {
		return nil, err
	}
	isMember, err := m.repos.GroupMember.IsMember(req.GroupId, req.SentById)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, errorx.New(errorx.CodeInvalidParam, "vous n'êtes pas membre de ce groupe")
	}

	profile := m.idp.GetUser(ctx, sender.SubjectId)
	groupId := req.GroupId
	msg := &model.Message{
		Content:    req.Content,
		Timestamp:  time.Now(),
		SenderId:   req.SentById,
		GroupId:    &groupId,
		SenderName: strings.TrimSpace(profile.FirstName + " " + profile.LastName),
	}

	if err := m.persistWithUpload(msg, upload); err != nil {
		return nil, err
	}
	m.invalidate(groupCacheKey(groupId))

	rsp := respond.NewMessageRespond(msg)
	m.notifier.Publish(push.GroupTopic(groupId), rsp)
	return &rsp, nil
}

// persistWithUpload 落盘附件（如有）并写入消息
// 消息与附件在同一事务内写入，DB 失败时清理已落盘的文件
func (m *messageService) persistWithUpload(msg *model.Message, upload *service.Upload) error {
	var saved *filestore.SavedFile
	if upload != nil {
		var err error
		saved, err = m.store.Save(upload.Name, upload.Reader)
		if err != nil {
			return err
		}
		msg.Attachments = []model.Attachment{{
			Name:        saved.Name,
			MimeType:    saved.MimeType,
			Size:        saved.Size,
			StoragePath: saved.StoragePath,
		}}
	}

	if err := m.repos.Message.Create(msg); err != nil {
		if saved != nil {
			if rmErr := m.store.Remove(saved.StoragePath); rmErr != nil {
				zap.L().Error("cleanup upload after db failure", zap.Error(rmErr))
			}
		}
		return err
	}
	return nil
}

// ==================== 编辑与删除 ====================

// UpdateContent 编辑消息内容
func (m *messageService) UpdateContent(ctx context.Context, messageId uint, content string) (*respond.MessageRespond, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "le contenu est requis")
	}
	msg, err := m.repos.Message.FindByID(messageId)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, errorx.New(errorx.CodeInvalidParam, "message supprimé, modification impossible")
	}
	msg.Content = content
	msg.IsUpdated = true
	if err := m.repos.Message.Save(msg); err != nil {
		return nil, err
	}
	m.invalidateFor(msg)
	rsp := respond.NewMessageRespond(msg)
	return &rsp, nil
}

// Delete 软删除消息
// 行与时间戳保留，会话排序不受影响
func (m *messageService) Delete(ctx context.Context, messageId uint) (*respond.MessageRespond, error) {
	msg, err := m.repos.Message.FindByID(messageId)
	if err != nil {
		return nil, err
	}
	msg.Content = constants.TOMBSTONE_CONTENT
	msg.IsDeleted = true
	if err := m.repos.Message.Save(msg); err != nil {
		return nil, err
	}
	m.invalidateFor(msg)
	rsp := respond.NewMessageRespond(msg)
	return &rsp, nil
}

// ==================== 查询 ====================

// GetBetween 两个用户之间的私聊记录（缓存旁路）
func (m *messageService) GetBetween(ctx context.Context, userOneId, userTwoId uint) ([]respond.MessageRespond, error) {
	cacheKey := betweenCacheKey(userOneId, userTwoId)
	if cached := m.readListCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	messages, err := m.repos.Message.FindBetweenUsers(userOneId, userTwoId)
	if err != nil {
		return nil, err
	}
	rspList := make([]respond.MessageRespond, 0, len(messages))
	for i := range messages {
		rspList = append(rspList, respond.NewMessageRespond(&messages[i]))
	}

	m.writeListCache(cacheKey, rspList)
	return rspList, nil
}

// GetGroupMessages 群聊记录，带发送者姓名实时解析
// 缓存只存写入时的姓名快照，解析在每次请求时进行，改名立即可见；
// IdP 解析失败时回退到快照，再退到占位姓名
func (m *messageService) GetGroupMessages(ctx context.Context, groupId uint) ([]respond.MessageRespond, error) {
	if _, err := m.repos.Group.FindByID(groupId); err != nil {
		return nil, err
	}

	cacheKey := groupCacheKey(groupId)
	rspList := m.readListCache(ctx, cacheKey)
	if rspList == nil {
		messages, err := m.repos.Message.FindByGroupId(groupId)
		if err != nil {
			return nil, err
		}
		rspList = make([]respond.MessageRespond, 0, len(messages))
		for i := range messages {
			rspList = append(rspList, respond.NewMessageRespond(&messages[i]))
		}
		// 回填任务晚于下面的姓名覆写执行，先复制一份快照
		snapshot := make([]respond.MessageRespond, len(rspList))
		copy(snapshot, rspList)
		m.writeListCache(cacheKey, snapshot)
	}

	// 同一发送者在一次请求内只解析一次
	resolved := make(map[uint]string)
	for i := range rspList {
		rspList[i].SenderName = m.resolveSenderName(ctx, rspList[i].SentById, rspList[i].SenderName, resolved)
	}
	return rspList, nil
}

// resolveSenderName 解析群消息的发送者姓名
func (m *messageService) resolveSenderName(ctx context.Context, senderId uint, snapshotName string, resolved map[uint]string) string {
	if name, ok := resolved[senderId]; ok {
		if name != "" {
			return name
		}
	} else {
		name := ""
		if sender, err := m.repos.User.FindByID(senderId); err == nil {
			profile := m.idp.GetUser(ctx, sender.SubjectId)
			if profile.FirstName != constants.PLACEHOLDER_FIRST_NAME || profile.LastName != constants.PLACEHOLDER_LAST_NAME {
				name = strings.TrimSpace(profile.FirstName + " " + profile.LastName)
			}
		}
		resolved[senderId] = name
		if name != "" {
			return name
		}
	}
	if snapshotName != "" {
		return snapshotName
	}
	return constants.PLACEHOLDER_FIRST_NAME + " " + constants.PLACEHOLDER_LAST_NAME
}

// readListCache 读列表缓存，未命中或解析失败返回 nil
func (m *messageService) readListCache(ctx context.Context, key string) []respond.MessageRespond {
	if m.cache == nil {
		return nil
	}
	raw, err := m.cache.Get(ctx, key)
	if err != nil {
		zap.L().Error("redis get key error", zap.String("key", key), zap.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}
	var rsp []respond.MessageRespond
	if err := json.Unmarshal([]byte(raw), &rsp); err != nil {
		zap.L().Error("json unmarshal cache error", zap.String("key", key), zap.Error(err))
		return nil
	}
	return rsp
}

// writeListCache 异步回填列表缓存
func (m *messageService) writeListCache(key string, list []respond.MessageRespond) {
	if m.cache == nil {
		return
	}
	m.cache.SubmitTask(func() {
		jsonBytes, err := json.Marshal(list)
		if err != nil {
			zap.L().Error("json marshal error", zap.Error(err))
			return
		}
		if err := m.cache.Set(context.Background(), key, string(jsonBytes), constants.REDIS_TIMEOUT); err != nil {
			zap.L().Error("redis set key error", zap.String("key", key), zap.Error(err))
		}
	})
}

// ConversationList 会话列表
// 私聊对端 ∪ 有消息的群，按最近消息时间降序，同刻按ID降序
func (m *messageService) ConversationList(ctx context.Context, userId uint) ([]respond.ConversationEntry, error) {
	if _, err := m.repos.User.FindByID(userId); err != nil {
		return nil, err
	}

	peers, err := m.repos.Message.FindConversationPeers(userId)
	if err != nil {
		return nil, err
	}

	type sortable struct {
		entry respond.ConversationEntry
		id    uint
	}
	entries := make([]sortable, 0, len(peers))

	for _, peer := range peers {
		user, err := m.repos.User.FindByID(peer.PeerId)
		if err != nil {
			if errorx.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		profile := m.idp.GetUser(ctx, user.SubjectId)
		entries = append(entries, sortable{
			entry: respond.ConversationEntry{
				Type:            "user",
				PostgresId:      user.ID,
				IdKeycloak:      user.SubjectId,
				FirstName:       profile.FirstName,
				LastName:        profile.LastName,
				LastMessageTime: peer.LastAt,
			},
			id: user.ID,
		})
	}

	groupIds, err := m.repos.GroupMember.FindGroupIdsByUserId(userId)
	if err != nil {
		return nil, err
	}
	lastAts, err := m.repos.Message.LastMessageAtByGroupIds(groupIds)
	if err != nil {
		return nil, err
	}
	activeIds := make([]uint, 0, len(lastAts))
	for groupId := range lastAts {
		activeIds = append(activeIds, groupId)
	}
	groups, err := m.repos.Group.FindByIDs(activeIds)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		entries = append(entries, sortable{
			entry: respond.ConversationEntry{
				Type:            "group",
				GroupId:         groups[i].ID,
				Name:            groups[i].Name,
				LastMessageTime: lastAts[groups[i].ID],
			},
			id: groups[i].ID,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].entry.LastMessageTime.Equal(entries[j].entry.LastMessageTime) {
			return entries[i].entry.LastMessageTime.After(entries[j].entry.LastMessageTime)
		}
		return entries[i].id > entries[j].id
	})

	result := make([]respond.ConversationEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.entry)
	}
	return result, nil
}

// ==================== 已读核算 ====================

// MarkPrivateRead 前移私聊水位
// 对端由前端用 IdP 主体ID标识，这里换回本地ID
func (m *messageService) MarkPrivateRead(ctx context.Context, currentUserId uint, peerSubjectId string) error {
	if _, err := m.repos.User.FindByID(currentUserId); err != nil {
		return err
	}
	peer, err := m.repos.User.FindBySubjectId(peerSubjectId)
	if err != nil {
		return err
	}
	return m.repos.ConversationStatus.UpsertPeer(currentUserId, peer.ID, time.Now())
}

// MarkGroupRead 前移群聊水位
func (m *messageService) MarkGroupRead(ctx context.Context, currentUserId, groupId uint) error {
	if _, err := m.repos.User.FindByID(currentUserId); err != nil {
		return err
	}
	if _, err := m.repos.Group.FindByID(groupId); err != nil {
		return err
	}
	return m.repos.ConversationStatus.UpsertGroup(currentUserId, groupId, time.Now())
}

// MarkMessagesSeen 把对端发来的私聊消息全部标记为已读
// 批量写入关联表，重复标记静默跳过，操作幂等
func (m *messageService) MarkMessagesSeen(ctx context.Context, currentUserId, otherUserId uint) error {
	if _, err := m.repos.User.FindByID(currentUserId); err != nil {
		return err
	}
	if _, err := m.repos.User.FindByID(otherUserId); err != nil {
		return err
	}

	messages, err := m.repos.Message.FindBetweenUsers(currentUserId, otherUserId)
	if err != nil {
		return err
	}
	ids := make([]uint, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		if msg.ReceiverId != nil && *msg.ReceiverId == currentUserId && !msg.SeenByUser(currentUserId) {
			ids = append(ids, msg.ID)
		}
	}
	if err := m.repos.Message.AddSeenBy(ids, currentUserId); err != nil {
		return err
	}
	m.invalidate(betweenCacheKey(currentUserId, otherUserId))
	return nil
}

// UnreadBySender 收件箱角标
// 私聊未读只看 seenBy 集合，与水位无关；计数为零的发送者不出现
func (m *messageService) UnreadBySender(ctx context.Context, userId uint) (map[uint]int, error) {
	if _, err := m.repos.User.FindByID(userId); err != nil {
		return nil, err
	}
	received, err := m.repos.Message.FindReceivedBy(userId)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]int)
	for i := range received {
		if !received[i].SeenByUser(userId) {
			result[received[i].SenderId]++
		}
	}
	return result, nil
}

// UnseenByReceiver 发件回执：对方尚未读到的消息数
func (m *messageService) UnseenByReceiver(ctx context.Context, userId uint) (map[uint]int, error) {
	if _, err := m.repos.User.FindByID(userId); err != nil {
		return nil, err
	}
	sent, err := m.repos.Message.FindSentBy(userId)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]int)
	for i := range sent {
		msg := &sent[i]
		if msg.ReceiverId == nil {
			continue
		}
		if !msg.SeenByUser(*msg.ReceiverId) {
			result[*msg.ReceiverId]++
		}
	}
	return result, nil
}

// UnreadByGroup 按群统计未读数
// 未读 = 水位之后、非本人发送、且不在已读集合中；所有成员群都返回计数（含零）
func (m *messageService) UnreadByGroup(ctx context.Context, userId uint) (map[uint]int, error) {
	if _, err := m.repos.User.FindByID(userId); err != nil {
		return nil, err
	}
	groupIds, err := m.repos.GroupMember.FindGroupIdsByUserId(userId)
	if err != nil {
		return nil, err
	}

	result := make(map[uint]int, len(groupIds))
	for _, groupId := range groupIds {
		since := time.Time{}
		watermark, err := m.repos.ConversationStatus.FindGroupWatermark(userId, groupId)
		if err == nil {
			since = watermark.LastReadAt
		} else if !errorx.IsNotFound(err) {
			return nil, err
		}

		count, err := m.repos.Message.CountUnreadGroupMessages(groupId, userId, since)
		if err != nil {
			return nil, err
		}
		result[groupId] = int(count)
	}
	return result, nil
}
