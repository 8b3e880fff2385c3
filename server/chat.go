package server

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// allowedChat admits Latin and Hebrew letters, digits, whitespace and a small
// punctuation set.
var allowedChat = regexp.MustCompile(`^[a-zA-Z0-9\x{0590}-\x{05FF}\s!?,.()*%$#@^+-]+$`)

var defaultBlockedWords = []string{
	"fuck", "fucking", "fucker", "motherfucker", "shit", "shitty", "bitch", "bitchy",
	"ass", "asshole", "dumbass", "dick", "dickhead", "pussy", "cock", "cunt", "whore",
	"slut", "bastard", "son of a bitch", "piece of shit",
	"זבל", "זונה", "בן זונה", "בת זונה", "כוס", "זין", "תחת", "כלבה", "בן כלבה",
	"בת כלבה", "שרמוטה", "שרמוט", "שרמוטות", "שרמוטים", "כוס אמא", "זין עליך",
}

// ChatFilter rejects text outside the character allowlist or containing a
// blocked word or phrase. Matching is on whole words, so "class" passes.
type ChatFilter struct {
	blocked []string
}

func NewChatFilter(words []string) *ChatFilter {
	if words == nil {
		words = defaultBlockedWords
	}
	f := &ChatFilter{}
	for _, w := range words {
		if n := normalizeWords(w); n != "" {
			f.blocked = append(f.blocked, " "+n+" ")
		}
	}
	return f
}

// Check returns ErrMessageChars or ErrMessageProfanity, or nil for clean text.
func (f *ChatFilter) Check(text string) error {
	if !allowedChat.MatchString(text) {
		return ErrMessageChars
	}
	padded := " " + normalizeWords(text) + " "
	for _, w := range f.blocked {
		if strings.Contains(padded, w) {
			return ErrMessageProfanity
		}
	}
	return nil
}

func normalizeWords(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// checkChatShape validates text length. The length limit applies to the raw
// text, before trimming.
func checkChatShape(text string, cfg Config) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(text) > cfg.ChatMaxLength {
		return "", ErrInvalidMessage
	}
	return trimmed, nil
}

// applyChat runs the shape check, the cooldown and the content filter, in that
// order, and sets the player's bubble on success.
func applyChat(p *Player, text string, now time.Time, cfg Config, filter *ChatFilter) error {
	msg, err := checkChatShape(text, cfg)
	if err != nil {
		return err
	}
	if !p.chatGate.AllowN(now, 1) {
		return ErrTooFast
	}
	if err := filter.Check(msg); err != nil {
		return err
	}
	p.Message = msg
	p.MessageTime = now
	p.AFK = false
	return nil
}

// expireChat clears a bubble older than the display window. Reports whether
// anything changed.
func expireChat(p *Player, now time.Time, cfg Config) bool {
	if p.Message == "" || now.Sub(p.MessageTime) < cfg.ChatDisplay {
		return false
	}
	p.Message = ""
	p.MessageTime = time.Time{}
	return true
}
