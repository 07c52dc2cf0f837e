package service

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

var (
	// ErrAttachmentDataMissing 源附件没有可读的字节内容
	ErrAttachmentDataMissing = errors.New("attachment has no readable data")
)

// IgnoreRule 上传附件的忽略规则，用于静默丢弃签名旁文件等无用上传。
type IgnoreRule struct {
	ContentType string // 精确匹配声明的内容类型
	Extension   string // 文件名后缀（不含点）
}

// AttachmentService 封装附件的入库与复制逻辑。
type AttachmentService struct {
	store       storage.Store
	blobs       BlobStore
	dispatcher  *IndexDispatcher
	ignoreRules []IgnoreRule
	log         *zap.Logger
}

// NewAttachmentService 创建附件业务服务。
func NewAttachmentService(
	store storage.Store,
	blobs BlobStore,
	dispatcher *IndexDispatcher,
	ignoreRules []IgnoreRule,
	log *zap.Logger,
) *AttachmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttachmentService{
		store:       store,
		blobs:       blobs,
		dispatcher:  dispatcher,
		ignoreRules: ignoreRules,
		log:         log,
	}
}

// Ignored 上传是否命中忽略规则。
func (s *AttachmentService) Ignored(filename, contentType string) bool {
	for _, rule := range s.ignoreRules {
		if rule.ContentType != "" && contentType == rule.ContentType {
			return true
		}
		if rule.Extension != "" && strings.HasSuffix(strings.ToLower(filename), "."+rule.Extension) {
			return true
		}
	}
	return false
}

// Ingest 把上传文件入库为通信的附件。
//
// 命中忽略规则时静默丢弃，返回 (nil, nil)。
// 可见范围由归属案件决定：孤儿或保密期内为私有。
// 仅在通信已归属案件时投递索引任务（孤儿附件从未进入索引）。
func (s *AttachmentService) Ingest(comm *domain.Communication, filename, contentType string, content []byte) (*domain.Attachment, error) {
	if s.Ignored(filename, contentType) {
		s.log.Debug("attachment ignored",
			zap.String("filename", filename),
			zap.String("content_type", contentType),
		)
		return nil, nil
	}

	var kase *domain.Case
	if comm.CaseID != nil {
		k, err := s.store.GetCase(*comm.CaseID)
		if err != nil {
			return nil, err
		}
		kase = k
	}

	att := &domain.Attachment{
		ID:              uuid.NewString(),
		CommunicationID: comm.ID,
		CaseID:          comm.CaseID,
		Title:           titleFromFilename(filename),
		Source:          ResolveSource(comm, kase),
		Access:          domain.AccessFor(kase),
		Filename:        filename,
		ContentType:     contentType,
		Size:            int64(len(content)),
		CreatedAt:       time.Now().UTC(),
	}

	path, err := s.blobs.Save(comm.ID, att.ID, filename, content)
	if err != nil {
		return nil, err
	}
	att.StoragePath = path

	if err := s.store.SaveAttachment(att); err != nil {
		return nil, err
	}

	// 孤儿的附件在归档（move）时才做首次索引
	if comm.CaseID != nil {
		s.dispatcher.Dispatch(att.ID, false)
	}

	s.log.Info("attachment ingested",
		zap.String("attachment_id", att.ID),
		zap.String("communication_id", comm.ID),
		zap.String("access", string(att.Access)),
	)
	return att, nil
}

// Duplicate 把附件复制到目标案件下的目标通信。
//
// 字节内容读出后重新写入，绝不共享存储；可见范围与来源标签
// 按目标案件重新计算。源附件没有可读内容时返回
// ErrAttachmentDataMissing，由调用方记日志后跳过。
func (s *AttachmentService) Duplicate(att *domain.Attachment, target *domain.Case, targetComm *domain.Communication) (*domain.Attachment, error) {
	if att.StoragePath == "" {
		return nil, ErrAttachmentDataMissing
	}
	content, err := s.blobs.Read(att.StoragePath)
	if err != nil || len(content) == 0 {
		return nil, ErrAttachmentDataMissing
	}

	dup := &domain.Attachment{
		ID:              uuid.NewString(),
		CommunicationID: targetComm.ID,
		CaseID:          &target.ID,
		Title:           att.Title,
		Source:          ResolveSource(targetComm, target),
		Access:          domain.AccessFor(target),
		Filename:        att.Filename,
		ContentType:     att.ContentType,
		Size:            int64(len(content)),
		CreatedAt:       att.CreatedAt,
	}

	path, err := s.blobs.Save(targetComm.ID, dup.ID, dup.Filename, content)
	if err != nil {
		return nil, err
	}
	dup.StoragePath = path

	if err := s.store.SaveAttachment(dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// Rescope 在通信改挂案件后重算附件的归属、可见范围与来源标签。
func (s *AttachmentService) Rescope(att *domain.Attachment, kase *domain.Case, comm *domain.Communication) error {
	att.CaseID = &kase.ID
	att.Access = domain.AccessFor(kase)
	att.Source = ResolveSource(comm, kase)
	return s.store.SaveAttachment(att)
}

// Read 读取附件的字节内容。
func (s *AttachmentService) Read(id string) (*domain.Attachment, error) {
	att, err := s.store.GetAttachment(id)
	if err != nil {
		return nil, err
	}
	content, err := s.blobs.Read(att.StoragePath)
	if err != nil {
		return nil, err
	}
	att.Content = content
	return att, nil
}

// titleFromFilename 去掉扩展名并截断到最大标题长度。
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" {
		title = base
	}
	return truncateRunes(title, domain.MaxTitleRunes)
}
