package domain

import "time"

// ChannelKind 投递渠道类型。
type ChannelKind string

const (
	ChannelEmail ChannelKind = "email"
	ChannelFax   ChannelKind = "fax"
	ChannelMail  ChannelKind = "mail"
	ChannelWeb   ChannelKind = "web"
)

// ChannelKindNone 表示通信没有任何投递记录。
const ChannelKindNone ChannelKind = ""

// kindPriority 时间相同时的固定优先级，数值小者优先。
var kindPriority = map[ChannelKind]int{
	ChannelEmail: 0,
	ChannelFax:   1,
	ChannelMail:  2,
	ChannelWeb:   3,
}

// Priority 返回渠道在时间并列时的优先级序号。
func (k ChannelKind) Priority() int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return len(kindPriority)
}

// Valid 渠道类型是否是四种已知类型之一。
func (k ChannelKind) Valid() bool {
	_, ok := kindPriority[k]
	return ok
}

// EmailRecord 一次电子邮件投递的事实记录。
type EmailRecord struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CommunicationID string     `json:"communicationId" gorm:"type:varchar(36);index;not null"`
	FromAddress     string     `json:"fromAddress" gorm:"type:varchar(255)"`
	ToAddress       string     `json:"toAddress" gorm:"type:varchar(255)"`
	SentAt          time.Time  `json:"sentAt" gorm:"not null"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
}

// FaxRecord 一次传真投递的事实记录。
type FaxRecord struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CommunicationID string     `json:"communicationId" gorm:"type:varchar(36);index;not null"`
	ToNumber        string     `json:"toNumber" gorm:"type:varchar(30)"`
	SentAt          time.Time  `json:"sentAt" gorm:"not null"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
}

// MailRecord 一次纸质邮寄的事实记录。
type MailRecord struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CommunicationID string    `json:"communicationId" gorm:"type:varchar(36);index;not null"`
	ToAddress       string    `json:"toAddress" gorm:"type:varchar(500)"`
	CarrierID       string    `json:"carrierId,omitempty" gorm:"type:varchar(50)"` // 邮寄服务商回执号
	SentAt          time.Time `json:"sentAt" gorm:"not null"`
}

// WebRecord 一次门户网站提交的事实记录。
type WebRecord struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CommunicationID string    `json:"communicationId" gorm:"type:varchar(36);index;not null"`
	SentAt          time.Time `json:"sentAt" gorm:"not null"`
}

// ChannelRecordSet 汇集一条通信在四张渠道子表中的全部记录。
//
// 投递记录是不可变的事实，不做可见范围控制；复制时逐字段原样拷贝。
type ChannelRecordSet struct {
	Emails []EmailRecord `json:"emails,omitempty"`
	Faxes  []FaxRecord   `json:"faxes,omitempty"`
	Mails  []MailRecord  `json:"mails,omitempty"`
	Webs   []WebRecord   `json:"webs,omitempty"`
}

// Empty 是否没有任何投递记录。
func (s *ChannelRecordSet) Empty() bool {
	return len(s.Emails) == 0 && len(s.Faxes) == 0 && len(s.Mails) == 0 && len(s.Webs) == 0
}

// Count 投递记录总数。
func (s *ChannelRecordSet) Count() int {
	return len(s.Emails) + len(s.Faxes) + len(s.Mails) + len(s.Webs)
}
