package memory

import (
	"testing"
	"time"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CaseOperations(t *testing.T) {
	store := NewStore()
	agencyID := "agency-1"

	// Test SaveCase
	kase := &domain.Case{
		ID:        "case-1",
		Title:     "信息公开申请",
		AgencyID:  &agencyID,
		Agency:    &domain.Agency{ID: agencyID, Name: "某某局", Status: domain.AgencyApproved},
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveCase(kase))

	// Test GetCase
	got, err := store.GetCase("case-1")
	require.NoError(t, err)
	assert.Equal(t, kase.Title, got.Title)
	require.NotNil(t, got.Agency)
	assert.Equal(t, "某某局", got.Agency.Name)

	// Test ListCases
	cases, err := store.ListCases()
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	// Test not found
	_, err = store.GetCase("ghost")
	assert.ErrorIs(t, err, storage.ErrCaseNotFound)

	// 返回的是副本，调用方的修改不应影响存储
	got.Agency.Name = "改名"
	again, err := store.GetCase("case-1")
	require.NoError(t, err)
	assert.Equal(t, "某某局", again.Agency.Name)
}

func TestMemoryStore_AdvanceCaseActivity(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveCase(&domain.Case{ID: "case-1"}))

	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	require.NoError(t, store.AdvanceCaseActivity("case-1", t2))
	got, err := store.GetCase("case-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastActivityAt)
	assert.True(t, got.LastActivityAt.Equal(t2))

	// 只允许向后推进，较早的时间不生效
	require.NoError(t, store.AdvanceCaseActivity("case-1", t1))
	got, err = store.GetCase("case-1")
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.Equal(t2))

	assert.ErrorIs(t, store.AdvanceCaseActivity("ghost", t1), storage.ErrCaseNotFound)
}

func TestMemoryStore_CommunicationOperations(t *testing.T) {
	store := NewStore()
	caseID := "case-1"
	require.NoError(t, store.SaveCase(&domain.Case{ID: caseID}))

	// Test SaveCommunication
	comm := &domain.Communication{
		ID:      "comm-1",
		CaseID:  &caseID,
		Subject: "受理通知",
		Body:    "正文",
		Date:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveCommunication(comm))

	orphan := &domain.Communication{
		ID:   "comm-2",
		Body: "孤儿",
		Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveCommunication(orphan))

	// Test GetCommunication
	got, err := store.GetCommunication("comm-1")
	require.NoError(t, err)
	assert.Equal(t, "受理通知", got.Subject)

	// Test ListCommunicationsByCase
	list, err := store.ListCommunicationsByCase(caseID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "comm-1", list[0].ID)

	// Test ListOrphanCommunications
	orphans, err := store.ListOrphanCommunications()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "comm-2", orphans[0].ID)

	// Test DeleteCommunication
	require.NoError(t, store.DeleteCommunication("comm-1"))
	_, err = store.GetCommunication("comm-1")
	assert.ErrorIs(t, err, storage.ErrCommunicationNotFound)
	assert.ErrorIs(t, store.DeleteCommunication("comm-1"), storage.ErrCommunicationNotFound)
}

func TestMemoryStore_DeleteCommunicationCascades(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveCommunication(&domain.Communication{ID: "comm-1", Date: time.Now()}))
	require.NoError(t, store.SaveAttachment(&domain.Attachment{ID: "att-1", CommunicationID: "comm-1"}))
	require.NoError(t, store.SaveEmailRecord(&domain.EmailRecord{ID: "email-1", CommunicationID: "comm-1", SentAt: time.Now()}))
	require.NoError(t, store.SaveWebRecord(&domain.WebRecord{ID: "web-1", CommunicationID: "comm-1", SentAt: time.Now()}))

	require.NoError(t, store.DeleteCommunication("comm-1"))

	_, err := store.GetAttachment("att-1")
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)

	set, err := store.ListChannelRecords("comm-1")
	require.NoError(t, err)
	assert.True(t, set.Empty())
}

func TestMemoryStore_AttachmentOperations(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.SaveCommunication(&domain.Communication{ID: "comm-1", Date: time.Now()}))

	// Test SaveAttachment
	att := &domain.Attachment{
		ID:              "att-1",
		CommunicationID: "comm-1",
		Title:           "report",
		Filename:        "report.pdf",
		ContentType:     "application/pdf",
		Size:            42,
		Access:          domain.AccessPublic,
		CreatedAt:       time.Now(),
		Content:         []byte("不应入库"),
	}
	require.NoError(t, store.SaveAttachment(att))

	// Test GetAttachment（字节内容不入库）
	got, err := store.GetAttachment("att-1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Nil(t, got.Content)

	// Test ListAttachmentsByCommunication
	list, err := store.ListAttachmentsByCommunication("comm-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Test DeleteAttachment
	require.NoError(t, store.DeleteAttachment("att-1"))
	_, err = store.GetAttachment("att-1")
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)
	assert.ErrorIs(t, store.DeleteAttachment("att-1"), storage.ErrAttachmentNotFound)
}

func TestMemoryStore_ChannelRecords(t *testing.T) {
	store := NewStore()
	sentAt := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveEmailRecord(&domain.EmailRecord{ID: "e1", CommunicationID: "comm-1", SentAt: sentAt}))
	require.NoError(t, store.SaveFaxRecord(&domain.FaxRecord{ID: "f1", CommunicationID: "comm-1", SentAt: sentAt}))
	require.NoError(t, store.SaveMailRecord(&domain.MailRecord{ID: "m1", CommunicationID: "comm-1", SentAt: sentAt}))
	require.NoError(t, store.SaveWebRecord(&domain.WebRecord{ID: "w1", CommunicationID: "comm-1", SentAt: sentAt}))
	require.NoError(t, store.SaveEmailRecord(&domain.EmailRecord{ID: "e2", CommunicationID: "comm-2", SentAt: sentAt}))

	set, err := store.ListChannelRecords("comm-1")
	require.NoError(t, err)
	assert.Equal(t, 4, set.Count())
	assert.Len(t, set.Emails, 1)

	// 其他通信的记录互不可见
	other, err := store.ListChannelRecords("comm-2")
	require.NoError(t, err)
	assert.Equal(t, 1, other.Count())

	// Test DeleteChannelRecords
	require.NoError(t, store.DeleteChannelRecords("comm-1"))
	set, err = store.ListChannelRecords("comm-1")
	require.NoError(t, err)
	assert.True(t, set.Empty())
}
