// Package parser extracts structured movie fields from free-form channel post
// text. Posts are human-authored, so label matching is case-insensitive and
// tolerates the common label spellings; a missing label just leaves the field
// empty.
package parser

import (
	"regexp"
	"strings"

	e "filmcode-tg-bot/pkg/entities"
)

// Expected post shape:
//
//	Код: F001
//	Назва: Inception
//	Рік: 2010
//	Посилання: https://...
//	Опис: text until end of post
type fieldPattern struct {
	re     *regexp.Regexp
	assign func(p *e.ParsedPost, value string)
}

var fieldPatterns = []fieldPattern{
	{
		re:     regexp.MustCompile(`(?i)код:\s*([A-Za-z0-9]+)`),
		assign: func(p *e.ParsedPost, v string) { p.Code = strings.ToUpper(v) },
	},
	{
		re:     regexp.MustCompile(`(?i)назва:\s*(.+)`),
		assign: func(p *e.ParsedPost, v string) { p.Title = strings.TrimSpace(v) },
	},
	{
		re:     regexp.MustCompile(`(?i)рік:\s*(\d{4})`),
		assign: func(p *e.ParsedPost, v string) { p.Year = v },
	},
	{
		re:     regexp.MustCompile(`(?is)опис:\s*(.+)`),
		assign: func(p *e.ParsedPost, v string) { p.Description = strings.TrimSpace(v) },
	},
	{
		re:     regexp.MustCompile(`(?i)(?:посилання|лінк|линк|ссылка):\s*(https?://\S+)`),
		assign: func(p *e.ParsedPost, v string) { p.Link = v },
	},
}

// Parse extracts movie fields from raw post text. It never fails: fields
// without a matching label stay empty.
func Parse(raw string) e.ParsedPost {
	var post e.ParsedPost

	if raw == "" {
		return post
	}

	for _, fp := range fieldPatterns {
		m := fp.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		fp.assign(&post, m[1])
	}

	return post
}
