package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/normalize"
)

// Разбор сохранённого HTML без браузера: последний фолбэк для удобств
// и офлайн-проверка селекторов на снимках страниц.

func parseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseAmenities тексты по первому CSS селектору, давшему совпадения
func ParseAmenities(html string, selectors []string) ([]string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}
	for _, selector := range selectors {
		if items := textsIn(doc.Selection, selector); len(items) > 0 {
			return items, nil
		}
	}
	return []string{}, nil
}

// ParseDetailDocument та же запись, что строит DetailExtractor, но по HTML.
// XPath селекторы здесь пропускаются, goquery понимает только CSS.
func ParseDetailDocument(html, sourceURL string, sel *Selectors, norm *normalize.Normalizer) (*ListingRecord, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	attr := sel.PictureAttr
	if attr == "" {
		attr = "src"
	}

	record := NewListingRecord(sourceURL)
	record.Title = norm.Text(firstText(doc, sel.Title))
	record.PictureURL = norm.Text(firstAttr(doc, sel.Picture, attr))
	record.Description = norm.Text(firstText(doc, sel.Description))
	record.Price = norm.Text(firstPrice(doc, sel.Price, sel.CurrencyMarkers))
	record.Rating = norm.Text(firstText(doc, sel.Rating))
	record.Location = norm.Text(firstText(doc, sel.Location))

	features := firstTexts(doc, sel.AmenitiesModal)
	if len(features) == 0 {
		features = firstTexts(doc, sel.AmenitiesPage)
	}
	if len(features) == 0 {
		for _, selector := range sel.AmenitiesDocument {
			if features = textsIn(doc.Selection, selector); len(features) > 0 {
				break
			}
		}
	}
	record.Features = norm.Lines(features)
	record.HouseDetails = norm.Lines(firstTexts(doc, sel.HouseDetails))

	return record, nil
}

// ParseSearchPage ссылки карточек и наличие активной кнопки Next на странице выдачи
func ParseSearchPage(html, baseURL string, sel *Selectors) ([]string, bool, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, false, err
	}

	var urls []string
	seen := make(map[string]struct{})
	for _, s := range cssOnly(sel.ListingCards) {
		found := doc.Find(s)
		if found.Length() == 0 {
			continue
		}
		found.Each(func(_ int, card *goquery.Selection) {
			href, _ := card.Attr("href")
			href = normalize.AbsoluteURL(baseURL, href)
			if href == "" {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}
			urls = append(urls, href)
		})
		break
	}

	hasNext := false
	for _, s := range cssOnly(sel.NextPage) {
		next := doc.Find(s).First()
		if next.Length() == 0 {
			continue
		}
		if disabled, _ := next.Attr("aria-disabled"); disabled == "true" {
			continue
		}
		hasNext = true
		break
	}

	return urls, hasNext, nil
}

func cssOnly(selectors []browser.Selector) []string {
	out := make([]string, 0, len(selectors))
	for _, s := range selectors {
		if s.Kind == browser.CSS && s.Value != "" {
			out = append(out, s.Value)
		}
	}
	return out
}

func firstText(doc *goquery.Document, selectors []browser.Selector) string {
	for _, s := range cssOnly(selectors) {
		if text := strings.TrimSpace(doc.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, selectors []browser.Selector, attr string) string {
	for _, s := range cssOnly(selectors) {
		if value, ok := doc.Find(s).First().Attr(attr); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func firstPrice(doc *goquery.Document, selectors []browser.Selector, markers []string) string {
	if len(markers) == 0 {
		markers = []string{"$"}
	}
	for _, s := range cssOnly(selectors) {
		var price string
		doc.Find(s).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			text := strings.TrimSpace(node.Text())
			for _, m := range markers {
				if strings.Contains(text, m) {
					price = text
					return false
				}
			}
			return true
		})
		if price != "" {
			return price
		}
	}
	return ""
}

func firstTexts(doc *goquery.Document, selectors []browser.Selector) []string {
	for _, s := range cssOnly(selectors) {
		if items := textsIn(doc.Selection, s); len(items) > 0 {
			return items
		}
	}
	return nil
}

func textsIn(root *goquery.Selection, selector string) []string {
	var out []string
	root.Find(selector).Each(func(_ int, node *goquery.Selection) {
		if text := strings.TrimSpace(node.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}
