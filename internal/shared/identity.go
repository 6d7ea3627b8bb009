package shared

import "golang.org/x/text/language"

// Identity carries the verified claims of the calling principal. It is
// always passed explicitly; nothing in the core reads ambient request state.
type Identity struct {
	UserID          int64
	SessionID       string
	Language        language.Tag
	IsPlatformAdmin bool
}

// ParseLanguage resolves a preferred-language claim to a BCP 47 tag. The
// claim may be a single tag or a full Accept-Language list; the first
// preference wins. Empty or malformed claims fall back to English.
func ParseLanguage(raw string) language.Tag {
	if raw == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	return tags[0]
}
