package render

import (
	"fmt"
	"strings"
)

// reservedSuffixChars is kept free in titles for " (n)" counters up to 999.
const reservedSuffixChars = 6

// Paginate splits content into one or more pages that each satisfy the total
// character budget, the aligned field count and the per-field limit.
//
// Content that already fits is returned unchanged as a single page. Otherwise
// oversized fields are split on line boundaries into "title (n)" parts, and
// the resulting fields are packed greedily into pages titled "title (n)".
// Only the last page carries the footer; only the first carries the
// description, author and thumbnail.
func Paginate(c Content) []Content {
	if fitsSinglePage(c) {
		return []Content{c}
	}

	var fields []Field
	for _, f := range c.Fields {
		fields = append(fields, splitField(f)...)
	}

	title := Truncate(c.Title, TitleLimit-reservedSuffixChars)
	footer := Truncate(c.Footer, FooterLimit)
	author := Truncate(c.Author, AuthorNameLimit)
	budget := TotalCharLimit - (runeLen(title) + reservedSuffixChars + runeLen(footer))
	description := Truncate(c.Description, min(DescriptionLimit, budget-runeLen(author)))

	var pages []Content
	cur := Content{Description: description, Author: author, Thumbnail: c.Thumbnail, Color: c.Color}
	curChars := runeLen(description) + runeLen(author)
	for _, f := range fields {
		fl := f.Len()
		full := len(cur.Fields) >= AlignedFieldCountLimit
		overflow := curChars+fl > budget && curChars > 0
		if full || overflow {
			pages = append(pages, cur)
			cur = Content{Color: c.Color}
			curChars = 0
		}
		cur.Fields = append(cur.Fields, f)
		curChars += fl
	}
	pages = append(pages, cur)

	for i := range pages {
		pages[i].Title = title
		if len(pages) > 1 {
			pages[i].Title = fmt.Sprintf("%s (%d)", title, i+1)
		}
	}
	pages[len(pages)-1].Footer = footer
	return pages
}

func fitsSinglePage(c Content) bool {
	if c.Len() > TotalCharLimit || len(c.Fields) > AlignedFieldCountLimit {
		return false
	}
	for _, f := range c.Fields {
		if f.Len() > FieldTextLimit {
			return false
		}
	}
	return true
}

// splitField breaks a field whose title+text exceeds FieldTextLimit into
// line-aligned parts titled "title (n)".
func splitField(f Field) []Field {
	if f.Len() <= FieldTextLimit {
		return []Field{f}
	}

	title := Truncate(f.Title, FieldNameLimit-reservedSuffixChars)
	limit := FieldTextLimit - runeLen(title) - reservedSuffixChars

	chunks := splitLines(f.Text, limit, false)
	out := make([]Field, 0, len(chunks))
	for i, chunk := range chunks {
		out = append(out, Field{
			Title:  fmt.Sprintf("%s (%d)", title, i+1),
			Text:   chunk,
			Inline: f.Inline,
		})
	}
	return out
}

// splitLines groups lines into chunks of at most limit runes. Chunks only
// break between lines. A single line longer than limit becomes its own chunk,
// truncated when hardWrap is false or wrapped across chunks when true.
func splitLines(text string, limit int, hardWrap bool) []string {
	var (
		chunks []string
		cur    strings.Builder
		curLen int
		has    bool
	)
	flush := func() {
		if has {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
		curLen = 0
		has = false
	}

	for _, line := range strings.Split(text, "\n") {
		ll := runeLen(line)
		if ll > limit {
			flush()
			if hardWrap {
				r := []rune(line)
				for len(r) > limit {
					chunks = append(chunks, string(r[:limit]))
					r = r[limit:]
				}
				line, ll = string(r), len(r)
			} else {
				chunks = append(chunks, Truncate(line, limit))
				continue
			}
		}
		switch {
		case !has:
			cur.WriteString(line)
			curLen = ll
			has = true
		case curLen+1+ll <= limit:
			cur.WriteByte('\n')
			cur.WriteString(line)
			curLen += 1 + ll
		default:
			flush()
			cur.WriteString(line)
			curLen = ll
			has = true
		}
	}
	flush()
	return chunks
}

// SplitMessage splits plain message text into parts of at most limit runes,
// breaking on newlines where possible. A non-positive limit uses
// MessageTextLimit.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageTextLimit
	}
	if runeLen(text) <= limit {
		return []string{text}
	}
	return splitLines(text, limit, true)
}
