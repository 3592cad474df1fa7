package relay

import (
	"regexp"
	"strings"
)

var (
	// Unity rich text: <b>, </color>, <color=#ff0000>, <size=20> ...
	gameTagRe = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9_-]*(=[^<>]*)?>`)

	userMentionRe  = regexp.MustCompile(`<@!?(\d+)>`)
	customEmojiRe  = regexp.MustCompile(`<a?:(\w+):\d+>`)
	discordMarkups = strings.NewReplacer("**", "", "__", "", "~~", "", "||", "", "`", "")
	broadcasts     = strings.NewReplacer("@everyone", "everyone", "@here", "here")
)

// StripGameMarkup removes rich text tags from game chat.
func StripGameMarkup(s string) string {
	return strings.TrimSpace(gameTagRe.ReplaceAllString(s, ""))
}

// StripBroadcastMentions drops the @ from @everyone and @here.
func StripBroadcastMentions(s string) string {
	return broadcasts.Replace(s)
}

// StripDiscordMarkup removes markdown the game chat cannot render, turns
// custom emoji into :name: and resolves user mentions through name.
func StripDiscordMarkup(s string, name func(id string) string) string {
	s = userMentionRe.ReplaceAllStringFunc(s, func(m string) string {
		id := userMentionRe.FindStringSubmatch(m)[1]
		if n := name(id); n != "" {
			return "@" + n
		}
		return "@unknown"
	})
	s = customEmojiRe.ReplaceAllString(s, ":$1:")
	s = discordMarkups.Replace(s)
	return strings.TrimSpace(s)
}

// escapeDiscord keeps game names from being read as markdown.
func escapeDiscord(s string) string {
	return strings.NewReplacer("*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`", "|", `\|`).Replace(s)
}
