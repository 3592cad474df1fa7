package render

import "github.com/bwmarrin/discordgo"

// zeroWidthSpace stands in for empty field names and values, which the
// platform rejects.
const zeroWidthSpace = "\u200b"

// ToEmbed converts one page into a discordgo embed, clamping every part to its
// limit. Pages produced by Paginate are never clamped.
func ToEmbed(c Content) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       Truncate(c.Title, TitleLimit),
		Description: Truncate(c.Description, DescriptionLimit),
		Color:       c.Color,
	}
	if c.Author != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: Truncate(c.Author, AuthorNameLimit)}
	}
	if c.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: Truncate(c.Footer, FooterLimit)}
	}
	if c.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: c.Thumbnail}
	}

	fields := c.Fields
	if len(fields) > FieldCountLimit {
		fields = fields[:FieldCountLimit]
	}
	for _, f := range fields {
		name := Truncate(f.Title, FieldNameLimit)
		if name == "" {
			name = zeroWidthSpace
		}
		value := Truncate(f.Text, FieldTextLimit)
		if value == "" {
			value = zeroWidthSpace
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  value,
			Inline: f.Inline,
		})
	}
	return embed
}
