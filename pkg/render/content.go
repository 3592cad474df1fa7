// Package render turns structured display content into pages that satisfy
// the platform's embed size limits.
package render

import (
	"strings"
	"unicode/utf8"
)

// Limits enforced server side by the platform. Exceeding any of them gets the
// whole request rejected, so pagination must stay within them exactly.
const (
	MessageTextLimit       = 2000
	TitleLimit             = 256
	DescriptionLimit       = 4096
	FooterLimit            = 2048
	FieldNameLimit         = 256
	FieldTextLimit         = 1024
	FieldCountLimit        = 25
	AlignedFieldCountLimit = 24
	TotalCharLimit         = 6000
	AuthorNameLimit        = 256
)

type Field struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Inline bool   `json:"inline,omitempty"`
}

// Len counts the characters the field contributes to an embed.
func (f Field) Len() int {
	return runeLen(f.Title) + runeLen(f.Text)
}

type Content struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Author      string  `json:"author,omitempty"`
	Footer      string  `json:"footer,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

// Len counts every character the platform includes in its total budget.
func (c Content) Len() int {
	n := runeLen(c.Title) + runeLen(c.Description) + runeLen(c.Author) + runeLen(c.Footer)
	for _, f := range c.Fields {
		n += f.Len()
	}
	return n
}

func (c Content) IsEmpty() bool {
	return c.Title == "" && c.Description == "" && c.Footer == "" && len(c.Fields) == 0
}

// AddField appends a field and returns the content for chaining.
func (c *Content) AddField(title, text string, inline bool) *Content {
	c.Fields = append(c.Fields, Field{Title: title, Text: text, Inline: inline})
	return c
}

// Equal compares two contents field by field.
func (c Content) Equal(o Content) bool {
	if c.Title != o.Title || c.Description != o.Description || c.Author != o.Author ||
		c.Footer != o.Footer || c.Thumbnail != o.Thumbnail || c.Color != o.Color ||
		len(c.Fields) != len(o.Fields) {
		return false
	}
	for i := range c.Fields {
		if c.Fields[i] != o.Fields[i] {
			return false
		}
	}
	return true
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate shortens s to at most limit runes, marking the cut with an
// ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if runeLen(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:limit-1]), " ") + "…"
}
