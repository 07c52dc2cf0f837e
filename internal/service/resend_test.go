package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
	"commtrack/backend/internal/storage/memory"
)

// MockCaseSubmitter 案件协作方出站端口的测试桩。
type MockCaseSubmitter struct {
	mock.Mock
}

func (m *MockCaseSubmitter) UpdateAddress(ctx context.Context, caseID string, channel domain.ChannelKind) error {
	args := m.Called(ctx, caseID, channel)
	return args.Error(0)
}

func (m *MockCaseSubmitter) Submit(ctx context.Context, caseID string, snail bool) error {
	args := m.Called(ctx, caseID, snail)
	return args.Error(0)
}

func newResendFixture(t *testing.T) (*memory.Store, *MockCaseSubmitter, *ResendService) {
	t.Helper()
	store := memory.NewStore()
	submitter := new(MockCaseSubmitter)
	return store, submitter, NewResendService(store, submitter, nil)
}

func saveApprovedCase(t *testing.T, store *memory.Store, caseID string) {
	t.Helper()
	agencyID := caseID + "-agency"
	require.NoError(t, store.SaveCase(&domain.Case{
		ID:       caseID,
		AgencyID: &agencyID,
		Agency:   &domain.Agency{ID: agencyID, Name: "某某局", Status: domain.AgencyApproved},
	}))
}

func saveCasedComm(t *testing.T, store *memory.Store, commID, caseID string) {
	t.Helper()
	require.NoError(t, store.SaveCommunication(&domain.Communication{
		ID:     commID,
		CaseID: &caseID,
		Body:   "正文",
		Date:   time.Now().UTC(),
	}))
}

func TestResendService_Resend(t *testing.T) {
	ctx := context.Background()

	t.Run("通信不存在时返回未找到", func(t *testing.T) {
		_, submitter, svc := newResendFixture(t)
		err := svc.Resend(ctx, "missing", domain.ChannelEmail)
		assert.ErrorIs(t, err, storage.ErrCommunicationNotFound)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("孤儿通信拒绝重发", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		require.NoError(t, store.SaveCommunication(&domain.Communication{
			ID: "comm-o", Body: "正文", Date: time.Now().UTC(),
		}))

		err := svc.Resend(ctx, "comm-o", domain.ChannelEmail)
		assert.ErrorIs(t, err, ErrOrphanCommunication)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("机构未审核时拒绝重发", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		agencyID := "agency-p"
		require.NoError(t, store.SaveCase(&domain.Case{
			ID:       "case-p",
			AgencyID: &agencyID,
			Agency:   &domain.Agency{ID: agencyID, Name: "待审局", Status: domain.AgencyPending},
		}))
		saveCasedComm(t, store, "comm-1", "case-p")

		err := svc.Resend(ctx, "comm-1", domain.ChannelEmail)
		assert.ErrorIs(t, err, ErrUnapprovedAgency)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("案件没有机构时同样拒绝", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		require.NoError(t, store.SaveCase(&domain.Case{ID: "case-n"}))
		saveCasedComm(t, store, "comm-1", "case-n")

		err := svc.Resend(ctx, "comm-1", domain.ChannelEmail)
		assert.ErrorIs(t, err, ErrUnapprovedAgency)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("指定邮件渠道时先改地址再提交", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		saveApprovedCase(t, store, "case-a")
		saveCasedComm(t, store, "comm-1", "case-a")

		submitter.On("UpdateAddress", mock.Anything, "case-a", domain.ChannelEmail).Return(nil)
		submitter.On("Submit", mock.Anything, "case-a", false).Return(nil)

		assert.NoError(t, svc.Resend(ctx, "comm-1", domain.ChannelEmail))
		submitter.AssertExpectations(t)
	})

	t.Run("指定传真渠道时先改地址再提交", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		saveApprovedCase(t, store, "case-a")
		saveCasedComm(t, store, "comm-1", "case-a")

		submitter.On("UpdateAddress", mock.Anything, "case-a", domain.ChannelFax).Return(nil)
		submitter.On("Submit", mock.Anything, "case-a", false).Return(nil)

		assert.NoError(t, svc.Resend(ctx, "comm-1", domain.ChannelFax))
		submitter.AssertExpectations(t)
	})

	t.Run("未指定渠道时走纸质邮寄兜底", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		saveApprovedCase(t, store, "case-a")
		saveCasedComm(t, store, "comm-1", "case-a")

		submitter.On("Submit", mock.Anything, "case-a", true).Return(nil)

		assert.NoError(t, svc.Resend(ctx, "comm-1", domain.ChannelKindNone))
		submitter.AssertExpectations(t)
		submitter.AssertNotCalled(t, "UpdateAddress", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("邮寄与网站不是合法的重发渠道", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		saveApprovedCase(t, store, "case-a")
		saveCasedComm(t, store, "comm-1", "case-a")

		assert.ErrorIs(t, svc.Resend(ctx, "comm-1", domain.ChannelMail), ErrInvalidChannel)
		assert.ErrorIs(t, svc.Resend(ctx, "comm-1", domain.ChannelWeb), ErrInvalidChannel)
		assert.ErrorIs(t, svc.Resend(ctx, "comm-1", domain.ChannelKind("pigeon")), ErrInvalidChannel)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("改地址失败时不提交", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		saveApprovedCase(t, store, "case-a")
		saveCasedComm(t, store, "comm-1", "case-a")

		boom := errors.New("gateway unavailable")
		submitter.On("UpdateAddress", mock.Anything, "case-a", domain.ChannelEmail).Return(boom)

		err := svc.Resend(ctx, "comm-1", domain.ChannelEmail)
		assert.ErrorIs(t, err, boom)
		submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("提交失败时错误上抛", func(t *testing.T) {
		store, submitter, svc := newResendFixture(t)
		saveApprovedCase(t, store, "case-a")
		saveCasedComm(t, store, "comm-1", "case-a")

		boom := errors.New("submit failed")
		submitter.On("Submit", mock.Anything, "case-a", true).Return(boom)

		err := svc.Resend(ctx, "comm-1", domain.ChannelKindNone)
		assert.ErrorIs(t, err, boom)
	})
}
