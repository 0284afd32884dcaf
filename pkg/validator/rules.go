package validator

import (
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rivo/uniseg"
)

const maxEmojiBytes = 64

const (
	zwj         = "\u200D"
	vs16        = '\uFE0F'
	keycapCombo = '\u20E3'
)

func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register validation tag %q: %v", tag, err)
		}
	}

	mustRegister("emoji", func(fl validator.FieldLevel) bool {
		return IsSingleEmoji(fl.Field().String())
	})
}

// IsSingleEmoji reports whether s is exactly one grapheme cluster rendered as an
// emoji: a pictograph in emoji presentation (with any modifiers, tags or ZWJ
// joins), a keycap, or a regional-indicator flag pair.
func IsSingleEmoji(s string) bool {
	if s == "" || len(s) > maxEmojiBytes || !utf8.ValidString(s) {
		return false
	}
	cluster, rest, width, _ := uniseg.FirstGraphemeClusterInString(s, -1)
	if rest != "" || strings.HasSuffix(cluster, zwj) {
		return false
	}
	if isKeycap(cluster) {
		return true
	}

	first, _ := utf8.DecodeRuneInString(cluster)
	// Text-presentation pictographs are one cell wide; emoji take two.
	if width != 2 || !unicode.IsSymbol(first) {
		return false
	}
	if isRegionalIndicator(first) {
		return utf8.RuneCountInString(cluster) == 2
	}
	return true
}

func isKeycap(cluster string) bool {
	runes := []rune(cluster)
	if len(runes) < 2 || len(runes) > 3 {
		return false
	}
	base := runes[0]
	if !(base >= '0' && base <= '9') && base != '#' && base != '*' {
		return false
	}
	if len(runes) == 3 {
		return runes[1] == vs16 && runes[2] == keycapCombo
	}
	return runes[1] == keycapCombo
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}
