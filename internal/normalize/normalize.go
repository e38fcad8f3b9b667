package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	spacesRe = regexp.MustCompile(`\s+`)
	amountRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

type Options struct {
	TrimNBSP       bool
	CollapseSpaces bool
}

type Normalizer struct {
	opts Options
}

func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Text чистит отрендеренный текст элемента
func (n *Normalizer) Text(text string) string {
	if n.opts.TrimNBSP {
		// NBSP и узкий NBSP на обычный пробел
		text = strings.ReplaceAll(text, "\u00a0", " ")
		text = strings.ReplaceAll(text, "\u202f", " ")
	}

	if n.opts.CollapseSpaces {
		text = spacesRe.ReplaceAllString(text, " ")
	}

	return strings.TrimSpace(text)
}

// Lines чистит каждую строку и выкидывает пустые. Никогда не возвращает nil.
func (n *Normalizer) Lines(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = n.Text(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// AbsoluteURL разрешает относительный href (/rooms/123?...) относительно base
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// ParsePrice первое число из строки цены: "$1,234 night" -> 1234.
// Формат валюты не интерпретируется.
func ParsePrice(raw string) (float64, bool) {
	match := amountRe.FindString(raw)
	if match == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
