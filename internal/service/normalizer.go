package service

import (
	"strings"

	"commtrack/backend/internal/domain"
)

// TruncationRule 针对特定对方机构的正文截断规则。
//
// 某些机构的回复系统会在固定标记之后附上大段无关的引用内容，
// 规则命中时丢弃标记及其后的全部文本。规则是配置数据，不是代码。
type TruncationRule struct {
	Counterparty string // 对方机构名称，精确匹配
	Marker       string // 截断标记
}

// Normalizer 在通信正文入库前做清洗与截断。
type Normalizer struct {
	rules []TruncationRule
}

// NewNormalizer 创建正文清洗器，rules 按配置顺序求值。
func NewNormalizer(rules []TruncationRule) *Normalizer {
	return &Normalizer{rules: rules}
}

// Normalize 返回应当持久化的正文。
//
// 处理顺序：剥离控制字符、截断到 domain.MaxBodyRunes 字符、
// 应用机构特例截断（按配置顺序第一条命中的规则生效）。
// 不修改案件本身。
func (n *Normalizer) Normalize(body string, kase *domain.Case) string {
	body = stripControl(body)

	if runes := []rune(body); len(runes) > domain.MaxBodyRunes {
		body = string(runes[:domain.MaxBodyRunes])
	}

	name := kase.CounterpartyName()
	if name == "" {
		return body
	}
	for _, rule := range n.rules {
		if rule.Counterparty != name {
			continue
		}
		if idx := strings.Index(body, rule.Marker); idx >= 0 {
			return body[:idx]
		}
	}
	return body
}

// stripControl 剥离 [0,9)、[11,13)、[14,32) 三段控制字符。
//
// 保留 \t(9)、\n(10)、\r(13)，与历史数据的清洗口径一致。
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0 && r < 9:
			return -1
		case r >= 11 && r < 13:
			return -1
		case r >= 14 && r < 32:
			return -1
		}
		return r
	}, s)
}
