package domain

import "time"

// MaxBodyRunes 通信正文在清洗后允许的最大字符数。
const MaxBodyRunes = 150000

// Communication 表示案件往来中的一条通信。
//
// CaseID 为 nil 时该通信是孤儿（orphan），需要人工归档；
// LikelyCaseID 保存归档时的候选案件提示。
type Communication struct {
	ID           string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CaseID       *string `json:"caseId,omitempty" gorm:"type:varchar(36);index"`
	LikelyCaseID *string `json:"likelyCaseId,omitempty" gorm:"type:varchar(36)"` // 仅孤儿通信使用

	FromUserID *string `json:"fromUserId,omitempty" gorm:"type:varchar(36)"`
	ToUserID   *string `json:"toUserId,omitempty" gorm:"type:varchar(36)"`
	// 历史数据的自由文本收发人，没有用户引用时作为回退
	FromLabel string `json:"fromLabel,omitempty" gorm:"type:varchar(255)"`
	ToLabel   string `json:"toLabel,omitempty" gorm:"type:varchar(255)"`

	Subject string    `json:"subject,omitempty" gorm:"type:varchar(255)"`
	Body    string    `json:"body,omitempty" gorm:"type:text"` // 已清洗，<= MaxBodyRunes 字符
	Date    time.Time `json:"date" gorm:"index;not null"`

	IsResponse    bool `json:"isResponse" gorm:"default:false"` // 对方回复还是我方发出
	Autogenerated bool `json:"autogenerated" gorm:"default:false"`
	Thanks        bool `json:"thanks" gorm:"default:false"`
	FullHTML      bool `json:"fullHtml" gorm:"default:false"`

	// 机器学习推断出的案件状态建议，可为空
	StatusHint string `json:"statusHint,omitempty" gorm:"type:varchar(10)"`

	Attachments []*Attachment `json:"attachments,omitempty" gorm:"-"`
}

// IsOrphan 该通信是否未归属任何案件。
func (c *Communication) IsOrphan() bool {
	return c.CaseID == nil
}

// FromLine 返回通信发送方的展示名称。
func (c *Communication) FromLine() string {
	return c.FromLabel
}

// CloneScalars 复制所有标量字段，返回一个没有 ID、未归属案件的新副本。
//
// 附件与投递记录不在此复制，由复制引擎逐一产生新行。
func (c *Communication) CloneScalars() *Communication {
	dup := *c
	dup.ID = ""
	dup.CaseID = nil
	dup.Attachments = nil
	return &dup
}
