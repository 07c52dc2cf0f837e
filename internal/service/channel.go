package service

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

// ChannelService 封装投递渠道台账：跨四张子表的解析与复制。
type ChannelService struct {
	store storage.Store
	log   *zap.Logger
}

// NewChannelService 创建投递渠道服务。
func NewChannelService(store storage.Store, log *zap.Logger) *ChannelService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChannelService{store: store, log: log}
}

// channelEntry 扁平化后的一条投递事实，用于跨子表排序。
type channelEntry struct {
	kind   domain.ChannelKind
	sentAt time.Time
}

// ResolveDelivered 解析通信实际经由的投递渠道。
//
// 把四类子表记录按发送时间降序排列，返回最新一条的渠道类型；
// 时间并列时按 Email、Fax、Mail、Web 的固定优先级保证确定性。
// 没有任何记录时返回 domain.ChannelKindNone。
func (s *ChannelService) ResolveDelivered(commID string) (domain.ChannelKind, error) {
	if _, err := s.store.GetCommunication(commID); err != nil {
		return domain.ChannelKindNone, err
	}

	set, err := s.store.ListChannelRecords(commID)
	if err != nil {
		return domain.ChannelKindNone, err
	}
	return ResolveDelivered(set), nil
}

// ResolveDelivered 对给定的渠道记录集合求“实际投递渠道”。
func ResolveDelivered(set *domain.ChannelRecordSet) domain.ChannelKind {
	entries := make([]channelEntry, 0, set.Count())
	for _, rec := range set.Emails {
		entries = append(entries, channelEntry{domain.ChannelEmail, rec.SentAt})
	}
	for _, rec := range set.Faxes {
		entries = append(entries, channelEntry{domain.ChannelFax, rec.SentAt})
	}
	for _, rec := range set.Mails {
		entries = append(entries, channelEntry{domain.ChannelMail, rec.SentAt})
	}
	for _, rec := range set.Webs {
		entries = append(entries, channelEntry{domain.ChannelWeb, rec.SentAt})
	}

	if len(entries) == 0 {
		return domain.ChannelKindNone
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].sentAt.Equal(entries[j].sentAt) {
			return entries[i].kind.Priority() < entries[j].kind.Priority()
		}
		return entries[i].sentAt.After(entries[j].sentAt)
	})
	return entries[0].kind
}

// DuplicateAll 把源通信的全部投递记录复制给目标通信。
//
// 投递记录是不可变事实，逐字段原样拷贝，只换新 ID 与归属；
// 四类之间相互独立，复制顺序无关紧要。
func (s *ChannelService) DuplicateAll(commID, targetCommID string) error {
	set, err := s.store.ListChannelRecords(commID)
	if err != nil {
		return err
	}

	for _, rec := range set.Emails {
		dup := rec
		dup.ID = uuid.NewString()
		dup.CommunicationID = targetCommID
		if err := s.store.SaveEmailRecord(&dup); err != nil {
			return err
		}
	}
	for _, rec := range set.Faxes {
		dup := rec
		dup.ID = uuid.NewString()
		dup.CommunicationID = targetCommID
		if err := s.store.SaveFaxRecord(&dup); err != nil {
			return err
		}
	}
	for _, rec := range set.Mails {
		dup := rec
		dup.ID = uuid.NewString()
		dup.CommunicationID = targetCommID
		if err := s.store.SaveMailRecord(&dup); err != nil {
			return err
		}
	}
	for _, rec := range set.Webs {
		dup := rec
		dup.ID = uuid.NewString()
		dup.CommunicationID = targetCommID
		if err := s.store.SaveWebRecord(&dup); err != nil {
			return err
		}
	}

	if !set.Empty() {
		s.log.Debug("channel records duplicated",
			zap.String("from", commID),
			zap.String("to", targetCommID),
			zap.Int("count", set.Count()),
		)
	}
	return nil
}

// RecordEmail 登记一条电子邮件投递事实。
func (s *ChannelService) RecordEmail(commID, fromAddr, toAddr string, sentAt time.Time) (*domain.EmailRecord, error) {
	rec := &domain.EmailRecord{
		ID:              uuid.NewString(),
		CommunicationID: commID,
		FromAddress:     fromAddr,
		ToAddress:       toAddr,
		SentAt:          sentAt,
	}
	if err := s.store.SaveEmailRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
