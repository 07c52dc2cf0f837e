package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"
	"commtrack/backend/internal/storage/memory"
)

func TestResolveDelivered(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("没有任何记录时返回None", func(t *testing.T) {
		got := ResolveDelivered(&domain.ChannelRecordSet{})
		assert.Equal(t, domain.ChannelKindNone, got)
	})

	t.Run("最新发送时间的渠道胜出", func(t *testing.T) {
		set := &domain.ChannelRecordSet{
			Emails: []domain.EmailRecord{{SentAt: base}},
			Faxes:  []domain.FaxRecord{{SentAt: base.Add(time.Hour)}},
			Mails:  []domain.MailRecord{{SentAt: base.Add(-time.Hour)}},
		}
		assert.Equal(t, domain.ChannelFax, ResolveDelivered(set))
	})

	t.Run("时间并列时邮件优先于传真", func(t *testing.T) {
		set := &domain.ChannelRecordSet{
			Emails: []domain.EmailRecord{{SentAt: base}},
			Faxes:  []domain.FaxRecord{{SentAt: base}},
		}
		assert.Equal(t, domain.ChannelEmail, ResolveDelivered(set))
	})

	t.Run("时间并列时传真优先于邮寄和网站", func(t *testing.T) {
		set := &domain.ChannelRecordSet{
			Faxes: []domain.FaxRecord{{SentAt: base}},
			Mails: []domain.MailRecord{{SentAt: base}},
			Webs:  []domain.WebRecord{{SentAt: base}},
		}
		assert.Equal(t, domain.ChannelFax, ResolveDelivered(set))
	})

	t.Run("时间并列时邮寄优先于网站", func(t *testing.T) {
		set := &domain.ChannelRecordSet{
			Mails: []domain.MailRecord{{SentAt: base}},
			Webs:  []domain.WebRecord{{SentAt: base}},
		}
		assert.Equal(t, domain.ChannelMail, ResolveDelivered(set))
	})

	t.Run("较新的网站提交压过较旧的邮件", func(t *testing.T) {
		set := &domain.ChannelRecordSet{
			Emails: []domain.EmailRecord{{SentAt: base}},
			Webs:   []domain.WebRecord{{SentAt: base.Add(time.Minute)}},
		}
		assert.Equal(t, domain.ChannelWeb, ResolveDelivered(set))
	})

	t.Run("同一渠道多条记录取最新", func(t *testing.T) {
		set := &domain.ChannelRecordSet{
			Emails: []domain.EmailRecord{
				{SentAt: base},
				{SentAt: base.Add(2 * time.Hour)},
			},
			Faxes: []domain.FaxRecord{{SentAt: base.Add(time.Hour)}},
		}
		assert.Equal(t, domain.ChannelEmail, ResolveDelivered(set))
	})
}

func TestChannelService_ResolveDelivered(t *testing.T) {
	store := memory.NewStore()
	svc := NewChannelService(store, nil)

	comm := &domain.Communication{ID: "comm-1", Body: "正文"}
	require.NoError(t, store.SaveCommunication(comm))

	t.Run("通信不存在时返回错误", func(t *testing.T) {
		_, err := svc.ResolveDelivered("missing")
		assert.ErrorIs(t, err, storage.ErrCommunicationNotFound)
	})

	t.Run("无记录的通信解析为None", func(t *testing.T) {
		kind, err := svc.ResolveDelivered("comm-1")
		assert.NoError(t, err)
		assert.Equal(t, domain.ChannelKindNone, kind)
	})

	t.Run("登记邮件记录后解析为邮件", func(t *testing.T) {
		rec, err := svc.RecordEmail("comm-1", "from@example.com", "to@agency.gov", time.Now().UTC())
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)

		kind, err := svc.ResolveDelivered("comm-1")
		assert.NoError(t, err)
		assert.Equal(t, domain.ChannelEmail, kind)
	})
}

func TestChannelService_DuplicateAll(t *testing.T) {
	store := memory.NewStore()
	svc := NewChannelService(store, nil)

	src := &domain.Communication{ID: "comm-src", Body: "正文"}
	dst := &domain.Communication{ID: "comm-dst", Body: "正文"}
	require.NoError(t, store.SaveCommunication(src))
	require.NoError(t, store.SaveCommunication(dst))

	sentAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	confirmed := sentAt.Add(time.Minute)
	require.NoError(t, store.SaveEmailRecord(&domain.EmailRecord{
		ID:              "email-1",
		CommunicationID: "comm-src",
		FromAddress:     "from@example.com",
		ToAddress:       "to@agency.gov",
		SentAt:          sentAt,
		ConfirmedAt:     &confirmed,
	}))
	require.NoError(t, store.SaveFaxRecord(&domain.FaxRecord{
		ID:              "fax-1",
		CommunicationID: "comm-src",
		ToNumber:        "+1-555-0100",
		SentAt:          sentAt,
	}))
	require.NoError(t, store.SaveMailRecord(&domain.MailRecord{
		ID:              "mail-1",
		CommunicationID: "comm-src",
		ToAddress:       "100 Main St",
		CarrierID:       "LOB-123",
		SentAt:          sentAt,
	}))
	require.NoError(t, store.SaveWebRecord(&domain.WebRecord{
		ID:              "web-1",
		CommunicationID: "comm-src",
		SentAt:          sentAt,
	}))

	require.NoError(t, svc.DuplicateAll("comm-src", "comm-dst"))

	got, err := store.ListChannelRecords("comm-dst")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Count())

	t.Run("复制件换新ID与归属", func(t *testing.T) {
		require.Len(t, got.Emails, 1)
		assert.NotEqual(t, "email-1", got.Emails[0].ID)
		assert.Equal(t, "comm-dst", got.Emails[0].CommunicationID)
	})

	t.Run("事实字段逐字段原样拷贝", func(t *testing.T) {
		require.Len(t, got.Emails, 1)
		assert.Equal(t, "from@example.com", got.Emails[0].FromAddress)
		assert.Equal(t, "to@agency.gov", got.Emails[0].ToAddress)
		assert.True(t, got.Emails[0].SentAt.Equal(sentAt))
		require.NotNil(t, got.Emails[0].ConfirmedAt)
		assert.True(t, got.Emails[0].ConfirmedAt.Equal(confirmed))

		require.Len(t, got.Mails, 1)
		assert.Equal(t, "LOB-123", got.Mails[0].CarrierID)
	})

	t.Run("源通信的记录保持不变", func(t *testing.T) {
		src, err := store.ListChannelRecords("comm-src")
		require.NoError(t, err)
		assert.Equal(t, 4, src.Count())
		assert.Equal(t, "email-1", src.Emails[0].ID)
	})
}
