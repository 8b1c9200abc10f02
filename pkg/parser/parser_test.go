package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFullPost(t *testing.T) {
	text := "Код: F001\nНазва: Inception\nРік: 2010\nПосилання: https://example.com/x\nОпис: Сни в снах.\nДруга строка опису."

	post := Parse(text)

	assert.Equal(t, "F001", post.Code)
	assert.Equal(t, "Inception", post.Title)
	assert.Equal(t, "2010", post.Year)
	assert.Equal(t, "https://example.com/x", post.Link)
	assert.Equal(t, "Сни в снах.\nДруга строка опису.", post.Description)
}

func TestParseCodeNormalization(t *testing.T) {
	tests := []struct {
		name string
		text string
		code string
	}{
		{"lowercase label", "код: a1", "A1"},
		{"mixed case label", "кОд: a1", "A1"},
		{"uppercase label", "КОД: a1", "A1"},
		{"latin digits only", "Код: 001", "001"},
		{"code inside longer post", "Новинка!\nКод: f12\nНазва: Дюна", "F12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := Parse(tt.text)
			assert.Equal(t, tt.code, post.Code)
		})
	}
}

func TestParseLinkSpellings(t *testing.T) {
	tests := []struct {
		name string
		text string
		link string
	}{
		{"ukrainian", "Посилання: https://example.com/a", "https://example.com/a"},
		{"short ukrainian", "Лінк: https://example.com/b", "https://example.com/b"},
		{"russian", "Ссылка: http://example.com/c", "http://example.com/c"},
		{"stops at whitespace", "Лінк: https://example.com/d далі текст", "https://example.com/d"},
		{"non-http ignored", "Посилання: ftp://example.com/e", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := Parse(tt.text)
			assert.Equal(t, tt.link, post.Link)
		})
	}
}

func TestParseAbsentFields(t *testing.T) {
	post := Parse("Просто анонс без коду та назви")

	assert.False(t, post.HasCode())
	assert.Empty(t, post.Title)
	assert.Empty(t, post.Year)
	assert.Empty(t, post.Description)
	assert.Empty(t, post.Link)
}

func TestParseEmptyInput(t *testing.T) {
	post := Parse("")
	assert.False(t, post.HasCode())
}

func TestParseYearRequiresFourDigits(t *testing.T) {
	post := Parse("Рік: 20")
	assert.Empty(t, post.Year)

	post = Parse("Рік: 2010")
	assert.Equal(t, "2010", post.Year)
}

func TestParseTitleStopsAtLineEnd(t *testing.T) {
	post := Parse("Назва: Ніхто2\nРік: 2024")
	assert.Equal(t, "Ніхто2", post.Title)
}
