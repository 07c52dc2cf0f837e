package domain

import "time"

// AccessLevel 附件的可见范围。
type AccessLevel string

const (
	AccessPublic  AccessLevel = "public"
	AccessPrivate AccessLevel = "private"
)

// MaxTitleRunes 附件标题与来源标签的最大字符数。
const MaxTitleRunes = 70

// Attachment 表示通信附带的一个文件。
//
// 字节内容存放在文件存储中，数据库只保存 StoragePath；
// 复制时总是读出再写入一份新文件，不同通信之间绝不共享存储。
type Attachment struct {
	ID              string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CommunicationID string      `json:"communicationId" gorm:"type:varchar(36);index;not null"`
	CaseID          *string     `json:"caseId,omitempty" gorm:"type:varchar(36);index"`
	Title           string      `json:"title" gorm:"type:varchar(70)"`  // 由文件名派生，<= MaxTitleRunes 字符
	Source          string      `json:"source" gorm:"type:varchar(70)"` // 机构名或发送方展示名
	Access          AccessLevel `json:"access" gorm:"type:varchar(10);default:'public';index"`
	Filename        string      `json:"filename" gorm:"type:varchar(255)"`
	ContentType     string      `json:"contentType" gorm:"type:varchar(100)"`
	Size            int64       `json:"size"`
	StoragePath     string      `json:"storagePath,omitempty" gorm:"type:varchar(500)"`
	CreatedAt       time.Time   `json:"createdAt"`

	Content []byte `json:"-" gorm:"-"` // 从文件存储加载，不入库
}

// AccessFor 根据归属案件计算附件的可见范围：孤儿或保密期内为私有。
func AccessFor(kase *Case) AccessLevel {
	if kase == nil || kase.Embargo {
		return AccessPrivate
	}
	return AccessPublic
}
