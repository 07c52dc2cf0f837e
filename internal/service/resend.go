package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

var (
	// ErrOrphanCommunication 孤儿通信没有可提交的案件
	ErrOrphanCommunication = errors.New("communication has no case to submit")
	// ErrUnapprovedAgency 案件机构缺失或未审核
	ErrUnapprovedAgency = errors.New("communication has no approved agency")
	// ErrInvalidChannel 重发渠道不合法
	ErrInvalidChannel = errors.New("invalid resend channel")
)

// CaseSubmitter 案件协作方的出站端口：更新联系地址与重新提交。
//
// 实际的提交与传输由外部案件系统完成，本服务只校验前置条件并选择渠道。
type CaseSubmitter interface {
	UpdateAddress(ctx context.Context, caseID string, channel domain.ChannelKind) error
	Submit(ctx context.Context, caseID string, snail bool) error
}

// ResendService 重发协调器。
type ResendService struct {
	store     storage.Store
	submitter CaseSubmitter
	log       *zap.Logger
}

// NewResendService 创建重发协调器。
func NewResendService(store storage.Store, submitter CaseSubmitter, log *zap.Logger) *ResendService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResendService{
		store:     store,
		submitter: submitter,
		log:       log,
	}
}

// Resend 经指定渠道重发通信所属的案件。
//
// channel 为空时走纸质邮寄兜底；给定 email 或 fax 时
// 先把案件联系地址改到该渠道再提交。
func (s *ResendService) Resend(ctx context.Context, commID string, channel domain.ChannelKind) error {
	comm, err := s.store.GetCommunication(commID)
	if err != nil {
		return err
	}
	if comm.IsOrphan() {
		s.log.Warn("tried resending an orphaned communication",
			zap.String("communication_id", commID))
		return ErrOrphanCommunication
	}

	kase, err := s.store.GetCase(*comm.CaseID)
	if err != nil {
		return err
	}
	if !kase.AgencyApproved() {
		s.log.Warn("tried resending a communication with an unapproved agency",
			zap.String("communication_id", commID),
			zap.String("case_id", kase.ID))
		return ErrUnapprovedAgency
	}

	snail := false
	if channel == domain.ChannelKindNone {
		snail = true
	} else {
		if channel != domain.ChannelEmail && channel != domain.ChannelFax {
			return ErrInvalidChannel
		}
		if err := s.submitter.UpdateAddress(ctx, kase.ID, channel); err != nil {
			return err
		}
	}

	if err := s.submitter.Submit(ctx, kase.ID, snail); err != nil {
		return err
	}

	s.log.Info("communication resent",
		zap.String("communication_id", commID),
		zap.String("case_id", kase.ID),
		zap.String("channel", string(channel)),
		zap.Bool("snail", snail),
	)
	return nil
}
