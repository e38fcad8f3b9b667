package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"airbnb-scraper/internal/scraper"
)

// Generator отпечаток содержимого объявления. Сохраняется рядом с записью,
// чтобы повторные визиты одного URL можно было сравнить без полного diff.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Fingerprint SHA256(url|title|picture|description|price|rating|location|features|house_details),
// списки склеиваются через ";". Регион и страна в отпечаток не входят.
func (g *Generator) Fingerprint(r *scraper.ListingRecord) string {
	if r == nil {
		return ""
	}

	content := strings.Join([]string{
		r.SourceURL,
		r.Title,
		r.PictureURL,
		r.Description,
		r.Price,
		r.Rating,
		r.Location,
		strings.Join(r.Features, ";"),
		strings.Join(r.HouseDetails, ";"),
	}, "|")

	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
