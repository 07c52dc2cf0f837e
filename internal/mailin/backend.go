package mailin

import (
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"commtrack/backend/internal/service"
	"commtrack/backend/internal/storage"
)

// 案件地址的收件人前缀，如 case-8f3a...@comms.example.org
const caseLocalPrefix = "case-"

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：机构的回信经它进入系统。
// 收件人地址的 local part 带 case- 前缀时，邮件归档到对应案件；
// 案件不存在或地址无法解析时，邮件落为孤儿通信等待人工归档，
// 能猜到的案件写入 likely 提示。入站邮件永远不会被直接丢弃。
type Backend struct {
	comms       *service.CommunicationService
	attachments *service.AttachmentService
	channels    *service.ChannelService
	store       storage.Store
	domain      string // 接收域名，留空表示接受任意域名
	limiter     *ConnectionLimiter
	log         *zap.Logger
}

// NewBackend 创建入站邮件 Backend。
func NewBackend(
	comms *service.CommunicationService,
	attachments *service.AttachmentService,
	channels *service.ChannelService,
	store storage.Store,
	domain string,
	limiter *ConnectionLimiter,
	log *zap.Logger,
) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		comms:       comms,
		attachments: attachments,
		channels:    channels,
		store:       store,
		domain:      domain,
		limiter:     limiter,
		log:         log,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if b.limiter != nil && !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []recipient
	released    bool
}

type recipient struct {
	address string
	caseID  string // 解析出的案件 ID，空串表示孤儿
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 配置了接收域名时，其它域名的地址一律 550 拒绝，防止被当作中继。
// 本域名内的任何地址都接受：解析不出案件的邮件落为孤儿，而不是退信。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if s.backend.domain != "" && !strings.EqualFold(parts[1], s.backend.domain) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	s.recipients = append(s.recipients, recipient{
		address: addr,
		caseID:  strings.TrimPrefix(parts[0], caseLocalPrefix),
	})
	return nil
}

// Data 处理邮件内容。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, 25<<20)) // 25MB
	if err != nil {
		return err
	}

	parsed, err := ParseMail(rawBytes)
	if err != nil {
		return fmt.Errorf("parse mail: %w", err)
	}

	for _, rcpt := range s.recipients {
		if err := s.deliver(rcpt, parsed); err != nil {
			return err
		}
	}
	return nil
}

// deliver 把一封解析后的邮件落为一条通信。
func (s *session) deliver(rcpt recipient, parsed *ParsedMail) error {
	now := time.Now().UTC()

	input := service.CreateCommunicationInput{
		FromLabel:  parsed.From,
		ToLabel:    rcpt.address,
		Subject:    parsed.Subject,
		Body:       parsed.Text,
		Date:       now,
		IsResponse: true,
		FullHTML:   false,
	}
	if input.Body == "" && parsed.HTML != "" {
		input.Body = parsed.HTML
		input.FullHTML = true
	}

	// local part 里带案件 ID 且案件存在才算归档成功
	var caseKnown bool
	if rcpt.caseID != "" && strings.HasPrefix(rcpt.address, caseLocalPrefix) {
		if _, err := s.backend.store.GetCase(rcpt.caseID); err == nil {
			caseID := rcpt.caseID
			input.CaseID = &caseID
			caseKnown = true
		} else {
			// 案件不存在，落为孤儿并记下候选案件
			likely := rcpt.caseID
			input.LikelyCaseID = &likely
		}
	}

	comm, err := s.backend.comms.Create(input)
	if err != nil {
		return err
	}

	for _, att := range parsed.Attachments {
		if _, err := s.backend.attachments.Ingest(comm, att.Filename, att.ContentType, att.Content); err != nil {
			s.backend.log.Error("failed to ingest inbound attachment",
				zap.String("communication_id", comm.ID),
				zap.String("filename", att.Filename),
				zap.Error(err),
			)
		}
	}

	if _, err := s.backend.channels.RecordEmail(comm.ID, s.fromAddress, rcpt.address, now); err != nil {
		s.backend.log.Warn("failed to record email delivery",
			zap.String("communication_id", comm.ID),
			zap.Error(err),
		)
	}

	s.backend.log.Info("inbound mail received",
		zap.String("communication_id", comm.ID),
		zap.String("from", s.fromAddress),
		zap.String("to", rcpt.address),
		zap.Bool("orphan", !caseKnown),
		zap.Int("attachments", len(parsed.Attachments)),
	)
	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	if s.backend.limiter != nil && !s.released {
		s.backend.limiter.Release()
		s.released = true
	}
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}

func decodeHeader(value string) string {
	if value == "" {
		return value
	}
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
