package render

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatField(title string, n, textLen int) []Field {
	fields := make([]Field, n)
	for i := range fields {
		fields[i] = Field{Title: fmt.Sprintf("%s%02d", title, i), Text: strings.Repeat("x", textLen-len(title)-2)}
	}
	return fields
}

func randomLines(r *rand.Rand, maxLines, maxLineLen int) string {
	n := r.Intn(maxLines + 1)
	lines := make([]string, n)
	for i := range lines {
		lines[i] = strings.Repeat(string(rune('a'+r.Intn(26))), r.Intn(maxLineLen+1))
	}
	return strings.Join(lines, "\n")
}

// randomContent mostly builds short titles and footers, and every fourth
// draw pushes them to their limits so the page budget is nearly exhausted.
func randomContent(r *rand.Rand) Content {
	c := Content{
		Title:  strings.Repeat("T", 1+r.Intn(40)),
		Footer: strings.Repeat("F", r.Intn(200)),
	}
	if r.Intn(4) == 0 {
		c.Title = strings.Repeat("T", TitleLimit-r.Intn(8))
		c.Footer = strings.Repeat("F", FooterLimit-r.Intn(16))
	}
	if r.Intn(3) == 0 {
		c.Description = strings.Repeat("d", r.Intn(800))
	}
	for i := r.Intn(60); i > 0; i-- {
		c.Fields = append(c.Fields, Field{
			Title:  strings.Repeat("f", 1+r.Intn(30)),
			Text:   randomLines(r, 20, 300),
			Inline: r.Intn(2) == 0,
		})
	}
	return c
}

func assertPageLimits(t *testing.T, pages []Content) {
	t.Helper()
	for i, p := range pages {
		assert.LessOrEqual(t, p.Len(), TotalCharLimit, "page %d total chars", i)
		assert.LessOrEqual(t, len(p.Fields), AlignedFieldCountLimit, "page %d field count", i)
		assert.LessOrEqual(t, runeLen(p.Title), TitleLimit, "page %d title", i)
		assert.LessOrEqual(t, runeLen(p.Footer), FooterLimit, "page %d footer", i)
		for j, f := range p.Fields {
			assert.LessOrEqual(t, f.Len(), FieldTextLimit, "page %d field %d", i, j)
		}
	}
}

func TestPaginate_SinglePageFastPath(t *testing.T) {
	c := Content{
		Title:       "Status",
		Description: "All systems nominal",
		Footer:      "updated just now",
		Fields:      repeatField("row", 24, 200),
	}
	pages := Paginate(c)
	require.Len(t, pages, 1)
	assert.True(t, pages[0].Equal(c), "fast path must return the input unchanged")
}

func TestPaginate_ThirtyFieldsExample(t *testing.T) {
	c := Content{Title: "Status", Footer: "", Fields: repeatField("f", 30, 50)}
	for _, f := range c.Fields {
		require.Equal(t, 50, f.Len())
	}

	pages := Paginate(c)
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Fields, 24)
	assert.Len(t, pages[1].Fields, 6)
	assert.Equal(t, "Status (1)", pages[0].Title)
	assert.Equal(t, "Status (2)", pages[1].Title)
	assert.Equal(t, c.Fields[24], pages[1].Fields[0])
}

func TestPaginate_FooterOnLastPageOnly(t *testing.T) {
	c := Content{Title: "Players", Footer: "page footer", Fields: repeatField("p", 60, 300)}
	pages := Paginate(c)
	require.Greater(t, len(pages), 1)
	for i, p := range pages[:len(pages)-1] {
		assert.Empty(t, p.Footer, "page %d", i)
	}
	assert.Equal(t, "page footer", pages[len(pages)-1].Footer)
	assertPageLimits(t, pages)
}

func TestPaginate_SplitsOversizedField(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %03d %s", i, strings.Repeat("=", 20))
	}
	text := strings.Join(lines, "\n")
	c := Content{Title: "Log", Fields: []Field{{Title: "Events", Text: text}}}

	pages := Paginate(c)
	require.Len(t, pages, 1, "split parts still fit on one page")
	assert.Equal(t, "Log", pages[0].Title)

	var parts []string
	for i, f := range pages[0].Fields {
		assert.Equal(t, fmt.Sprintf("Events (%d)", i+1), f.Title)
		for _, l := range strings.Split(f.Text, "\n") {
			assert.True(t, strings.HasPrefix(l, "line "), "chunk broke mid-line: %q", l)
		}
		parts = append(parts, f.Text)
	}
	assert.Greater(t, len(parts), 1)
	assert.Equal(t, text, strings.Join(parts, "\n"))
}

func TestPaginate_TruncatesOversizedLine(t *testing.T) {
	long := strings.Repeat("y", 3000)
	c := Content{Title: "Long", Fields: []Field{{Title: "Line", Text: "short\n" + long + "\ntail"}}}

	pages := Paginate(c)
	assertPageLimits(t, pages)

	var texts []string
	for _, p := range pages {
		for _, f := range p.Fields {
			texts = append(texts, f.Text)
		}
	}
	require.Len(t, texts, 3)
	assert.Equal(t, "short", texts[0])
	assert.True(t, strings.HasSuffix(texts[1], "…"))
	assert.Equal(t, "tail", texts[2])
}

func TestPaginate_DescriptionOnFirstPage(t *testing.T) {
	c := Content{
		Title:       "Board",
		Description: "header text",
		Author:      "gamelink",
		Thumbnail:   "https://example.com/t.png",
		Fields:      repeatField("b", 40, 100),
	}
	pages := Paginate(c)
	require.Len(t, pages, 2)
	assert.Equal(t, "header text", pages[0].Description)
	assert.Equal(t, "gamelink", pages[0].Author)
	assert.Equal(t, c.Thumbnail, pages[0].Thumbnail)
	assert.Empty(t, pages[1].Description)
	assert.Empty(t, pages[1].Thumbnail)
}

func TestPaginate_RandomizedContentStaysInLimits(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for n := 0; n < 300; n++ {
		c := randomContent(r)
		pages := Paginate(c)
		require.NotEmpty(t, pages)
		assertPageLimits(t, pages)

		if len(pages) > 1 {
			title := Truncate(c.Title, TitleLimit-reservedSuffixChars)
			for i, p := range pages {
				assert.Equal(t, fmt.Sprintf("%s (%d)", title, i+1), p.Title)
				if i < len(pages)-1 {
					assert.Empty(t, p.Footer)
				}
			}
		}
		assert.Equal(t, c.Footer, pages[len(pages)-1].Footer)

		// Every original field's text must be recoverable, in order, from the
		// consecutive page fields it was split into.
		var out []Field
		for _, p := range pages {
			out = append(out, p.Fields...)
		}
		idx := 0
		for _, f := range c.Fields {
			if f.Len() <= FieldTextLimit && fitsSinglePage(c) {
				require.Equal(t, f, out[idx])
				idx++
				continue
			}
			if f.Len() <= FieldTextLimit {
				require.Equal(t, f.Text, out[idx].Text)
				idx++
				continue
			}
			var parts []string
			for runeLen(strings.Join(parts, "\n")) < runeLen(f.Text) || len(parts) == 0 {
				require.Less(t, idx, len(out))
				parts = append(parts, out[idx].Text)
				idx++
			}
			require.Equal(t, f.Text, strings.Join(parts, "\n"))
		}
		assert.Equal(t, len(out), idx, "no duplicated fields")
	}
}

func TestPaginate_LimitSizedTitleAndFooter(t *testing.T) {
	c := Content{
		Title:       strings.Repeat("T", TitleLimit),
		Footer:      strings.Repeat("F", FooterLimit),
		Description: strings.Repeat("d", DescriptionLimit),
		Fields:      repeatField("f", 20, FieldTextLimit),
	}
	pages := Paginate(c)
	require.Greater(t, len(pages), 1)
	assertPageLimits(t, pages)

	last := pages[len(pages)-1]
	assert.Equal(t, c.Footer, last.Footer)
	assert.Equal(t, strings.Repeat("T", TitleLimit-reservedSuffixChars)+" (1)", pages[0].Title)
	assert.Less(t, len(pages[0].Description), DescriptionLimit, "description shares the first page budget")

	var fields int
	for _, p := range pages {
		fields += len(p.Fields)
	}
	assert.Equal(t, 20, fields)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"hello"}, SplitMessage("hello", 0))

	text := strings.Repeat("a", 15) + "\n" + strings.Repeat("b", 5)
	assert.Equal(t, []string{strings.Repeat("a", 15), strings.Repeat("b", 5)}, SplitMessage(text, 16))

	wrapped := SplitMessage(strings.Repeat("c", 25), 10)
	assert.Equal(t, []string{"cccccccccc", "cccccccccc", "ccccc"}, wrapped)

	long := strings.Repeat("word ", 1000)
	for _, part := range SplitMessage(long, 0) {
		assert.LessOrEqual(t, runeLen(part), MessageTextLimit)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abcd", 3))
	assert.Equal(t, "", Truncate("abcd", 0))
	assert.Equal(t, 5, runeLen(Truncate("héllo wörld", 5)))
}
