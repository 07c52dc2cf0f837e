package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

// BlobStore 附件字节内容的存储接口（文件系统实现）。
type BlobStore interface {
	Save(commID, attachmentID, filename string, content []byte) (string, error)
	Read(relPath string) ([]byte, error)
	Delete(relPath string) error
	DeleteCommunication(commID string) error
}

// CommunicationService 封装通信实体的持久化逻辑。
type CommunicationService struct {
	store      storage.Store
	normalizer *Normalizer
	blobs      BlobStore
	log        *zap.Logger
}

// NewCommunicationService 创建通信业务服务。
func NewCommunicationService(store storage.Store, normalizer *Normalizer, blobs BlobStore, log *zap.Logger) *CommunicationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommunicationService{
		store:      store,
		normalizer: normalizer,
		blobs:      blobs,
		log:        log,
	}
}

// CreateCommunicationInput 定义创建通信的输入。
type CreateCommunicationInput struct {
	CaseID       *string
	LikelyCaseID *string // 孤儿通信的候选案件提示
	FromUserID   *string
	ToUserID     *string
	FromLabel    string
	ToLabel      string
	Subject      string
	Body         string
	Date         time.Time
	IsResponse   bool
	Autogenerated bool
	FullHTML     bool
}

// Create 新建一条通信，正文入库前清洗。
func (s *CommunicationService) Create(input CreateCommunicationInput) (*domain.Communication, error) {
	if input.Date.IsZero() {
		input.Date = time.Now().UTC()
	}

	comm := &domain.Communication{
		ID:            uuid.NewString(),
		CaseID:        input.CaseID,
		LikelyCaseID:  input.LikelyCaseID,
		FromUserID:    input.FromUserID,
		ToUserID:      input.ToUserID,
		FromLabel:     input.FromLabel,
		ToLabel:       input.ToLabel,
		Subject:       input.Subject,
		Body:          input.Body,
		Date:          input.Date,
		IsResponse:    input.IsResponse,
		Autogenerated: input.Autogenerated,
		FullHTML:      input.FullHTML,
	}

	if err := s.Persist(comm); err != nil {
		return nil, err
	}
	return comm, nil
}

// Persist 保存通信：清洗正文、落库、推进案件最近活动时间。
//
// 案件活动时间只会向后推进，保存旧通信不会把它往回拨。
func (s *CommunicationService) Persist(comm *domain.Communication) error {
	var kase *domain.Case
	if comm.CaseID != nil {
		k, err := s.store.GetCase(*comm.CaseID)
		if err != nil {
			return err
		}
		kase = k
	}

	comm.Body = s.normalizer.Normalize(comm.Body, kase)

	if err := s.store.SaveCommunication(comm); err != nil {
		return err
	}

	if kase != nil {
		if err := s.store.AdvanceCaseActivity(kase.ID, comm.Date); err != nil {
			return err
		}
	}
	return nil
}

// Get 获取单条通信，附带其附件元数据。
func (s *CommunicationService) Get(id string) (*domain.Communication, error) {
	comm, err := s.store.GetCommunication(id)
	if err != nil {
		return nil, err
	}

	atts, err := s.store.ListAttachmentsByCommunication(id)
	if err != nil {
		return nil, err
	}
	comm.Attachments = make([]*domain.Attachment, 0, len(atts))
	for i := range atts {
		comm.Attachments = append(comm.Attachments, &atts[i])
	}
	return comm, nil
}

// ListByCase 列出案件下的全部通信。
func (s *CommunicationService) ListByCase(caseID string) ([]domain.Communication, error) {
	if _, err := s.store.GetCase(caseID); err != nil {
		return nil, err
	}
	return s.store.ListCommunicationsByCase(caseID)
}

// ListOrphans 列出待人工归档的孤儿通信。
func (s *CommunicationService) ListOrphans() ([]domain.Communication, error) {
	return s.store.ListOrphanCommunications()
}

// Delete 管理员删除通信，级联删除附件元数据、字节内容与投递记录。
func (s *CommunicationService) Delete(id string) error {
	if _, err := s.store.GetCommunication(id); err != nil {
		return err
	}

	if err := s.store.DeleteCommunication(id); err != nil {
		return err
	}

	// 字节内容清理是尽力而为，失败不影响删除结果
	if s.blobs != nil {
		if err := s.blobs.DeleteCommunication(id); err != nil {
			s.log.Warn("failed to remove attachment blobs",
				zap.String("communication_id", id),
				zap.Error(err),
			)
		}
	}

	s.log.Info("communication deleted", zap.String("communication_id", id))
	return nil
}

// ResolveSource 计算附件的来源标签：案件机构名，其次发送方展示名，否则为空。
func ResolveSource(comm *domain.Communication, kase *domain.Case) string {
	if name := kase.CounterpartyName(); name != "" {
		return truncateRunes(name, domain.MaxTitleRunes)
	}
	if from := comm.FromLine(); from != "" {
		return truncateRunes(from, domain.MaxTitleRunes)
	}
	return ""
}

// truncateRunes 按字符数截断字符串。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
