package storage

import (
	"errors"
	"time"

	"commtrack/backend/internal/domain"
)

var (
	// ErrCaseNotFound 案件不存在错误
	ErrCaseNotFound = errors.New("case not found")
	// ErrCommunicationNotFound 通信不存在错误
	ErrCommunicationNotFound = errors.New("communication not found")
	// ErrAttachmentNotFound 附件未找到错误
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// CaseRepository 定义案件投影数据的存取操作。
type CaseRepository interface {
	SaveCase(kase *domain.Case) error
	GetCase(id string) (*domain.Case, error)
	ListCases() ([]domain.Case, error)
	// AdvanceCaseActivity 推进案件的最近活动时间，仅当 when 晚于当前值时生效
	AdvanceCaseActivity(id string, when time.Time) error
}

// CommunicationRepository 定义通信数据的存取操作。
type CommunicationRepository interface {
	SaveCommunication(comm *domain.Communication) error
	GetCommunication(id string) (*domain.Communication, error)
	ListCommunicationsByCase(caseID string) ([]domain.Communication, error)
	ListOrphanCommunications() ([]domain.Communication, error)
	// DeleteCommunication 管理员删除，级联删除附件与投递记录
	DeleteCommunication(id string) error
}

// AttachmentRepository 定义附件元数据的存取操作。
type AttachmentRepository interface {
	SaveAttachment(att *domain.Attachment) error
	GetAttachment(id string) (*domain.Attachment, error)
	ListAttachmentsByCommunication(commID string) ([]domain.Attachment, error)
	DeleteAttachment(id string) error
}

// ChannelRepository 定义四类投递渠道子表的存取操作。
type ChannelRepository interface {
	SaveEmailRecord(rec *domain.EmailRecord) error
	SaveFaxRecord(rec *domain.FaxRecord) error
	SaveMailRecord(rec *domain.MailRecord) error
	SaveWebRecord(rec *domain.WebRecord) error
	// ListChannelRecords 一次取出通信在全部四张子表中的记录
	ListChannelRecords(commID string) (*domain.ChannelRecordSet, error)
	DeleteChannelRecords(commID string) error
}

// Store 定义完整的存储接口。
type Store interface {
	CaseRepository
	CommunicationRepository
	AttachmentRepository
	ChannelRepository

	// 工具方法
	Close() error
	Health() error
}
