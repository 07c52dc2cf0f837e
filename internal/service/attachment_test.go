package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commtrack/backend/internal/domain"
	"commtrack/backend/internal/storage/filesystem"
	"commtrack/backend/internal/storage/memory"
)

// captureQueue 捕获投递的索引任务，供测试断言。
type captureQueue struct {
	jobs chan IndexJob
}

func newCaptureQueue() *captureQueue {
	return &captureQueue{jobs: make(chan IndexJob, 16)}
}

func (q *captureQueue) Enqueue(_ context.Context, job IndexJob, _ time.Duration) error {
	q.jobs <- job
	return nil
}

// waitJob 等待一条索引任务，超时视为没有投递。
func (q *captureQueue) waitJob(t *testing.T) IndexJob {
	t.Helper()
	select {
	case job := <-q.jobs:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("未在超时时间内收到索引任务")
		return IndexJob{}
	}
}

// assertNoJob 断言短时间内没有任务投递。
func (q *captureQueue) assertNoJob(t *testing.T) {
	t.Helper()
	select {
	case job := <-q.jobs:
		t.Fatalf("不应投递索引任务，却收到 %+v", job)
	case <-time.After(100 * time.Millisecond):
	}
}

func newAttachmentFixture(t *testing.T) (*AttachmentService, *memory.Store, *captureQueue) {
	t.Helper()
	store := memory.NewStore()
	blobs, err := filesystem.NewStore(t.TempDir())
	require.NoError(t, err)
	queue := newCaptureQueue()
	dispatcher := NewIndexDispatcher(queue, nil, 0, nil)
	svc := NewAttachmentService(store, blobs, dispatcher, []IgnoreRule{
		{ContentType: "application/x-pkcs7-signature", Extension: "p7s"},
	}, nil)
	return svc, store, queue
}

func TestAttachmentService_Ignored(t *testing.T) {
	svc, _, _ := newAttachmentFixture(t)

	t.Run("内容类型精确匹配时忽略", func(t *testing.T) {
		assert.True(t, svc.Ignored("smime.bin", "application/x-pkcs7-signature"))
	})

	t.Run("文件名后缀匹配时忽略", func(t *testing.T) {
		assert.True(t, svc.Ignored("smime.p7s", "application/octet-stream"))
		assert.True(t, svc.Ignored("SMIME.P7S", "application/octet-stream"))
	})

	t.Run("普通文件不忽略", func(t *testing.T) {
		assert.False(t, svc.Ignored("report.pdf", "application/pdf"))
	})
}

func TestAttachmentService_Ingest(t *testing.T) {
	svc, store, queue := newAttachmentFixture(t)

	agencyID := "agency-1"
	require.NoError(t, store.SaveCase(&domain.Case{
		ID:       "case-open",
		Title:    "公开案件",
		AgencyID: &agencyID,
		Agency:   &domain.Agency{ID: agencyID, Name: "某某局", Status: domain.AgencyApproved},
	}))
	require.NoError(t, store.SaveCase(&domain.Case{
		ID:      "case-embargo",
		Title:   "保密案件",
		Embargo: true,
	}))

	casedID := "case-open"
	cased := &domain.Communication{ID: "comm-cased", CaseID: &casedID, Date: time.Now().UTC()}
	orphan := &domain.Communication{ID: "comm-orphan", FromLabel: "records@agency.gov", Date: time.Now().UTC()}
	require.NoError(t, store.SaveCommunication(cased))
	require.NoError(t, store.SaveCommunication(orphan))

	t.Run("命中忽略规则时静默丢弃", func(t *testing.T) {
		att, err := svc.Ingest(cased, "smime.p7s", "application/x-pkcs7-signature", []byte("sig"))
		assert.NoError(t, err)
		assert.Nil(t, att)
		queue.assertNoJob(t)
	})

	t.Run("归属案件的附件公开并投递首次索引", func(t *testing.T) {
		att, err := svc.Ingest(cased, "report.pdf", "application/pdf", []byte("%PDF-1.4"))
		require.NoError(t, err)
		require.NotNil(t, att)
		assert.Equal(t, domain.AccessPublic, att.Access)
		assert.Equal(t, "report", att.Title)
		assert.Equal(t, "某某局", att.Source)
		assert.NotEmpty(t, att.StoragePath)
		assert.Equal(t, int64(len("%PDF-1.4")), att.Size)

		job := queue.waitJob(t)
		assert.Equal(t, att.ID, job.AttachmentID)
		assert.False(t, job.Change)
	})

	t.Run("孤儿附件私有且不投递索引", func(t *testing.T) {
		att, err := svc.Ingest(orphan, "scan.tiff", "image/tiff", []byte("II*\x00"))
		require.NoError(t, err)
		require.NotNil(t, att)
		assert.Equal(t, domain.AccessPrivate, att.Access)
		assert.Equal(t, "records@agency.gov", att.Source)
		queue.assertNoJob(t)
	})

	t.Run("保密期案件的附件私有", func(t *testing.T) {
		embargoID := "case-embargo"
		comm := &domain.Communication{ID: "comm-embargo", CaseID: &embargoID, Date: time.Now().UTC()}
		require.NoError(t, store.SaveCommunication(comm))

		att, err := svc.Ingest(comm, "letter.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK"))
		require.NoError(t, err)
		require.NotNil(t, att)
		assert.Equal(t, domain.AccessPrivate, att.Access)
		// 保密案件没有机构，回退到发送方展示名，再没有则为空
		assert.Equal(t, "", att.Source)
		queue.waitJob(t)
	})

	t.Run("超长文件名派生的标题截断到上限", func(t *testing.T) {
		long := strings.Repeat("附", 100) + ".pdf"
		att, err := svc.Ingest(cased, long, "application/pdf", []byte("%PDF"))
		require.NoError(t, err)
		require.NotNil(t, att)
		assert.Equal(t, domain.MaxTitleRunes, len([]rune(att.Title)))
		queue.waitJob(t)
	})

	t.Run("没有扩展名的文件名整体作为标题", func(t *testing.T) {
		att, err := svc.Ingest(cased, "README", "text/plain", []byte("hi"))
		require.NoError(t, err)
		require.NotNil(t, att)
		assert.Equal(t, "README", att.Title)
		queue.waitJob(t)
	})
}

func TestAttachmentService_Duplicate(t *testing.T) {
	svc, store, queue := newAttachmentFixture(t)

	agencyID := "agency-2"
	source := &domain.Case{
		ID:       "case-src",
		AgencyID: &agencyID,
		Agency:   &domain.Agency{ID: agencyID, Name: "来源局", Status: domain.AgencyApproved},
	}
	target := &domain.Case{ID: "case-dst", Embargo: true}
	require.NoError(t, store.SaveCase(source))
	require.NoError(t, store.SaveCase(target))

	srcID := source.ID
	comm := &domain.Communication{ID: "comm-src", CaseID: &srcID, Date: time.Now().UTC()}
	targetComm := &domain.Communication{ID: "comm-dst", CaseID: &target.ID, Date: time.Now().UTC()}
	require.NoError(t, store.SaveCommunication(comm))
	require.NoError(t, store.SaveCommunication(targetComm))

	att, err := svc.Ingest(comm, "evidence.pdf", "application/pdf", []byte("%PDF-bytes"))
	require.NoError(t, err)
	require.NotNil(t, att)
	queue.waitJob(t)

	t.Run("复制件重写存储且按目标案件重算范围", func(t *testing.T) {
		dup, err := svc.Duplicate(att, target, targetComm)
		require.NoError(t, err)
		assert.NotEqual(t, att.ID, dup.ID)
		assert.Equal(t, targetComm.ID, dup.CommunicationID)
		assert.Equal(t, target.ID, *dup.CaseID)
		assert.Equal(t, domain.AccessPrivate, dup.Access)
		assert.NotEqual(t, att.StoragePath, dup.StoragePath)

		loaded, err := svc.Read(dup.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-bytes"), loaded.Content)
	})

	t.Run("源附件缺少存储路径时返回数据缺失", func(t *testing.T) {
		broken := &domain.Attachment{ID: "att-broken", CommunicationID: comm.ID, Filename: "lost.pdf"}
		_, err := svc.Duplicate(broken, target, targetComm)
		assert.ErrorIs(t, err, ErrAttachmentDataMissing)
	})

	t.Run("存储中读不到内容时返回数据缺失", func(t *testing.T) {
		ghost := &domain.Attachment{
			ID:              "att-ghost",
			CommunicationID: comm.ID,
			Filename:        "ghost.pdf",
			StoragePath:     "comm-src/att-ghost/ghost.pdf",
		}
		_, err := svc.Duplicate(ghost, target, targetComm)
		assert.ErrorIs(t, err, ErrAttachmentDataMissing)
	})
}

func TestAttachmentService_Rescope(t *testing.T) {
	svc, store, queue := newAttachmentFixture(t)

	require.NoError(t, store.SaveCase(&domain.Case{ID: "case-new", Embargo: false}))
	kase, err := store.GetCase("case-new")
	require.NoError(t, err)

	orphan := &domain.Communication{ID: "comm-o", FromLabel: "sender@example.com", Date: time.Now().UTC()}
	require.NoError(t, store.SaveCommunication(orphan))

	att, err := svc.Ingest(orphan, "doc.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, domain.AccessPrivate, att.Access)
	queue.assertNoJob(t)

	orphan.CaseID = &kase.ID
	require.NoError(t, svc.Rescope(att, kase, orphan))

	got, err := store.GetAttachment(att.ID)
	require.NoError(t, err)
	assert.Equal(t, "case-new", *got.CaseID)
	assert.Equal(t, domain.AccessPublic, got.Access)
	assert.Equal(t, "sender@example.com", got.Source)
}
