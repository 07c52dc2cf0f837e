package memory

import (
	"sort"
	"sync"
	"time"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

// Store 使用内存保存案件与通信数据，主要用于开发验证和单元测试。
type Store struct {
	mu          sync.RWMutex
	cases       map[string]*domain.Case
	comms       map[string]*domain.Communication
	attachments map[string]*domain.Attachment
	attsByComm  map[string]map[string]*domain.Attachment // commID -> attID -> attachment

	// 四类投递渠道子表，按通信 ID 索引
	emails map[string][]*domain.EmailRecord
	faxes  map[string][]*domain.FaxRecord
	mails  map[string][]*domain.MailRecord
	webs   map[string][]*domain.WebRecord
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		cases:       make(map[string]*domain.Case),
		comms:       make(map[string]*domain.Communication),
		attachments: make(map[string]*domain.Attachment),
		attsByComm:  make(map[string]map[string]*domain.Attachment),
		emails:      make(map[string][]*domain.EmailRecord),
		faxes:       make(map[string][]*domain.FaxRecord),
		mails:       make(map[string][]*domain.MailRecord),
		webs:        make(map[string][]*domain.WebRecord),
	}
}

// ========== Case Repository ==========

// SaveCase 保存案件投影。
func (s *Store) SaveCase(kase *domain.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *kase
	if kase.Agency != nil {
		agency := *kase.Agency
		cp.Agency = &agency
	}
	s.cases[kase.ID] = &cp
	return nil
}

// GetCase 根据 ID 获取案件。
func (s *Store) GetCase(id string) (*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kase, ok := s.cases[id]
	if !ok {
		return nil, storage.ErrCaseNotFound
	}
	cp := *kase
	if kase.Agency != nil {
		agency := *kase.Agency
		cp.Agency = &agency
	}
	return &cp, nil
}

// ListCases 列出全部案件。
func (s *Store) ListCases() ([]domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Case, 0, len(s.cases))
	for _, kase := range s.cases {
		out = append(out, *kase)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AdvanceCaseActivity 推进案件最近活动时间，只允许向后推进。
func (s *Store) AdvanceCaseActivity(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kase, ok := s.cases[id]
	if !ok {
		return storage.ErrCaseNotFound
	}
	if kase.LastActivityAt == nil || when.After(*kase.LastActivityAt) {
		w := when
		kase.LastActivityAt = &w
	}
	return nil
}

// ========== Communication Repository ==========

// SaveCommunication 保存通信（新建或覆盖）。
func (s *Store) SaveCommunication(comm *domain.Communication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *comm
	cp.Attachments = nil
	s.comms[comm.ID] = &cp
	return nil
}

// GetCommunication 根据 ID 获取通信。
func (s *Store) GetCommunication(id string) (*domain.Communication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comm, ok := s.comms[id]
	if !ok {
		return nil, storage.ErrCommunicationNotFound
	}
	cp := *comm
	return &cp, nil
}

// ListCommunicationsByCase 列出案件下的全部通信，按日期升序。
func (s *Store) ListCommunicationsByCase(caseID string) ([]domain.Communication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Communication, 0)
	for _, comm := range s.comms {
		if comm.CaseID != nil && *comm.CaseID == caseID {
			out = append(out, *comm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ListOrphanCommunications 列出所有未归档的孤儿通信，供人工归档。
func (s *Store) ListOrphanCommunications() ([]domain.Communication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Communication, 0)
	for _, comm := range s.comms {
		if comm.CaseID == nil {
			out = append(out, *comm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DeleteCommunication 删除通信并级联删除附件与投递记录。
func (s *Store) DeleteCommunication(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comms[id]; !ok {
		return storage.ErrCommunicationNotFound
	}
	delete(s.comms, id)

	// 级联删除附件
	for attID := range s.attsByComm[id] {
		delete(s.attachments, attID)
	}
	delete(s.attsByComm, id)

	// 级联删除四类投递记录
	delete(s.emails, id)
	delete(s.faxes, id)
	delete(s.mails, id)
	delete(s.webs, id)
	return nil
}

// ========== Attachment Repository ==========

// SaveAttachment 保存附件元数据。
func (s *Store) SaveAttachment(att *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *att
	cp.Content = nil
	s.attachments[att.ID] = &cp

	byComm, ok := s.attsByComm[att.CommunicationID]
	if !ok {
		byComm = make(map[string]*domain.Attachment)
		s.attsByComm[att.CommunicationID] = byComm
	}
	byComm[att.ID] = &cp
	return nil
}

// GetAttachment 根据 ID 获取附件元数据。
func (s *Store) GetAttachment(id string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attachments[id]
	if !ok {
		return nil, storage.ErrAttachmentNotFound
	}
	cp := *att
	return &cp, nil
}

// ListAttachmentsByCommunication 列出通信拥有的全部附件，按创建时间升序。
func (s *Store) ListAttachmentsByCommunication(commID string) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Attachment, 0, len(s.attsByComm[commID]))
	for _, att := range s.attsByComm[commID] {
		out = append(out, *att)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteAttachment 删除附件元数据。
func (s *Store) DeleteAttachment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	att, ok := s.attachments[id]
	if !ok {
		return storage.ErrAttachmentNotFound
	}
	delete(s.attachments, id)
	if byComm, ok := s.attsByComm[att.CommunicationID]; ok {
		delete(byComm, id)
	}
	return nil
}

// ========== Channel Repository ==========

// SaveEmailRecord 保存电子邮件投递记录。
func (s *Store) SaveEmailRecord(rec *domain.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.emails[rec.CommunicationID] = append(s.emails[rec.CommunicationID], &cp)
	return nil
}

// SaveFaxRecord 保存传真投递记录。
func (s *Store) SaveFaxRecord(rec *domain.FaxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.faxes[rec.CommunicationID] = append(s.faxes[rec.CommunicationID], &cp)
	return nil
}

// SaveMailRecord 保存纸质邮寄投递记录。
func (s *Store) SaveMailRecord(rec *domain.MailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.mails[rec.CommunicationID] = append(s.mails[rec.CommunicationID], &cp)
	return nil
}

// SaveWebRecord 保存门户提交投递记录。
func (s *Store) SaveWebRecord(rec *domain.WebRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.webs[rec.CommunicationID] = append(s.webs[rec.CommunicationID], &cp)
	return nil
}

// ListChannelRecords 一次取出通信在四张渠道子表中的全部记录。
func (s *Store) ListChannelRecords(commID string) (*domain.ChannelRecordSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := &domain.ChannelRecordSet{}
	for _, rec := range s.emails[commID] {
		set.Emails = append(set.Emails, *rec)
	}
	for _, rec := range s.faxes[commID] {
		set.Faxes = append(set.Faxes, *rec)
	}
	for _, rec := range s.mails[commID] {
		set.Mails = append(set.Mails, *rec)
	}
	for _, rec := range s.webs[commID] {
		set.Webs = append(set.Webs, *rec)
	}
	return set, nil
}

// DeleteChannelRecords 删除通信的全部投递记录。
func (s *Store) DeleteChannelRecords(commID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.emails, commID)
	delete(s.faxes, commID)
	delete(s.mails, commID)
	delete(s.webs, commID)
	return nil
}

// ========== 工具方法 ==========

// Close 关闭存储，内存实现无需清理。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查，内存实现总是可用。
func (s *Store) Health() error {
	return nil
}
