package service

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"commtrack/backend/internal/cache"
	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
)

var (
	// ErrNoTargetCase move 没有给出任何目标案件
	ErrNoTargetCase = errors.New("expected a case to move the communication to")
	// ErrNoValidTargets clone 的目标案件没有一个存在
	ErrNoValidTargets = errors.New("no valid cases provided for cloning")
)

// ReplicationService 复制引擎：跨案件移动或克隆一条通信，
// 连同它的附件与四类投递子记录，并派发索引副作用。
//
// 同一条通信上的并发 move 互不安全（后写覆盖先写），由调用方串行化；
// 引擎内部只创建新行或修改自己独占的行，不需要分布式锁。
type ReplicationService struct {
	store       storage.Store
	comms       *CommunicationService
	attachments *AttachmentService
	channels    *ChannelService
	dispatcher  *IndexDispatcher
	cases       *cache.CaseCache
	log         *zap.Logger
}

// NewReplicationService 创建复制引擎。
func NewReplicationService(
	store storage.Store,
	comms *CommunicationService,
	attachments *AttachmentService,
	channels *ChannelService,
	dispatcher *IndexDispatcher,
	cases *cache.CaseCache,
	log *zap.Logger,
) *ReplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReplicationService{
		store:       store,
		comms:       comms,
		attachments: attachments,
		channels:    channels,
		dispatcher:  dispatcher,
		cases:       cases,
		log:         log,
	}
}

// getCase 经缓存读取案件投影。
func (s *ReplicationService) getCase(id string) (*domain.Case, error) {
	if s.cases != nil {
		if kase, ok := s.cases.Get(id); ok {
			return kase, nil
		}
	}
	kase, err := s.store.GetCase(id)
	if err != nil {
		return nil, err
	}
	if s.cases != nil {
		s.cases.Set(kase)
	}
	return kase, nil
}

// Move 把通信移动到 caseIDs[0]；其余 ID 交给 Clone 复制。
//
// 返回移动后的通信与 Clone 产生的副本列表。孤儿通信的附件
// 从未进入过索引，归档后按初次索引（change=false）投递任务；
// 已归档通信改挂新案件则按重建索引（change=true）投递。
func (s *ReplicationService) Move(commID string, caseIDs []string) (*domain.Communication, []*domain.Communication, error) {
	if len(caseIDs) == 0 {
		return nil, nil, ErrNoTargetCase
	}

	comm, err := s.store.GetCommunication(commID)
	if err != nil {
		return nil, nil, err
	}

	primary, err := s.getCase(caseIDs[0])
	if err != nil {
		return nil, nil, err
	}

	wasOrphan := comm.IsOrphan()
	change := !wasOrphan

	comm.CaseID = &primary.ID

	atts, err := s.store.ListAttachmentsByCommunication(comm.ID)
	if err != nil {
		return nil, nil, err
	}
	for i := range atts {
		att := &atts[i]
		if err := s.attachments.Rescope(att, primary, comm); err != nil {
			return nil, nil, err
		}
		s.dispatcher.Dispatch(att.ID, change)
	}

	if err := s.comms.Persist(comm); err != nil {
		return nil, nil, err
	}

	s.log.Info("communication moved",
		zap.String("communication_id", comm.ID),
		zap.String("case_id", primary.ID),
		zap.Bool("was_orphan", wasOrphan),
		zap.Int("attachments", len(atts)),
	)

	var cloned []*domain.Communication
	if len(caseIDs) > 1 {
		cloned, err = s.Clone(comm.ID, caseIDs[1:])
		if err != nil {
			return comm, nil, err
		}
	}
	return comm, cloned, nil
}

// Clone 把通信深拷贝到每一个可以解析的目标案件。
//
// 每个目标得到一条全新的通信行（标量字段相同、新 ID），
// 附件逐个读出重写（不共享存储），四类投递记录逐字段拷贝。
// 单个附件缺数据时记日志跳过，不中断整个克隆；
// 不同目标之间没有共享可变状态，各目标并发执行，
// 返回的副本顺序与给定的目标 ID 顺序一致。
func (s *ReplicationService) Clone(commID string, caseIDs []string) ([]*domain.Communication, error) {
	comm, err := s.store.GetCommunication(commID)
	if err != nil {
		return nil, err
	}

	// 先按给定顺序解析目标，跳过不存在的案件
	targets := make([]*domain.Case, 0, len(caseIDs))
	for _, id := range caseIDs {
		kase, err := s.getCase(id)
		if err != nil {
			if errors.Is(err, storage.ErrCaseNotFound) {
				s.log.Warn("clone target case not found, skipped", zap.String("case_id", id))
				continue
			}
			return nil, err
		}
		targets = append(targets, kase)
	}
	if len(targets) == 0 {
		return nil, ErrNoValidTargets
	}

	// 源通信的附件与投递记录只取一次，各目标共享只读视图
	atts, err := s.store.ListAttachmentsByCommunication(comm.ID)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.Communication, len(targets))
	var group errgroup.Group
	for i, target := range targets {
		group.Go(func() error {
			dup, err := s.cloneToCase(comm, target, atts)
			if err != nil {
				return err
			}
			results[i] = dup
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// cloneToCase 在单个目标案件下产生一个完整副本。
//
// 该副本的附件与投递记录复制完成（或带日志跳过）之后，
// 副本才算克隆完毕。
func (s *ReplicationService) cloneToCase(comm *domain.Communication, target *domain.Case, atts []domain.Attachment) (*domain.Communication, error) {
	dup := comm.CloneScalars()
	dup.ID = uuid.NewString()
	dup.CaseID = &target.ID

	if err := s.comms.Persist(dup); err != nil {
		return nil, err
	}

	for i := range atts {
		att := &atts[i]
		newAtt, err := s.attachments.Duplicate(att, target, dup)
		if err != nil {
			if errors.Is(err, ErrAttachmentDataMissing) {
				// 丢一个附件不应阻断其余附件与投递记录的复制
				s.log.Error("attachment has no data, not cloned",
					zap.String("attachment_id", att.ID),
					zap.String("target_case_id", target.ID),
				)
				continue
			}
			return nil, err
		}
		// 新副本是首次进入索引
		s.dispatcher.Dispatch(newAtt.ID, false)
	}

	if err := s.channels.DuplicateAll(comm.ID, dup.ID); err != nil {
		return nil, err
	}

	s.log.Info("communication cloned",
		zap.String("communication_id", comm.ID),
		zap.String("clone_id", dup.ID),
		zap.String("target_case_id", target.ID),
	)
	return dup, nil
}
