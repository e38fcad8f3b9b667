package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/scraper"
)

// LoadSelectors загружает селекторы из YAML файла.
// Группы, не указанные в файле, берутся из встроенных значений.
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return scraper.DefaultSelectors(), nil
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close selectors file: %v", closeErr)
		}
	}()

	var loaded scraper.Selectors
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&loaded); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	selectors := mergeSelectors(scraper.DefaultSelectors(), &loaded)
	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// LoadConfiguredSelectors путь из конфига; относительный считается от configs/
func (c *Config) LoadConfiguredSelectors() (*scraper.Selectors, error) {
	filePath := c.SelectorsFile
	if filePath != "" && !filepath.IsAbs(filePath) {
		if _, err := os.Stat(filePath); err != nil {
			filePath = filepath.Join("configs", filePath)
		}
	}
	return LoadSelectors(filePath)
}

func mergeSelectors(base, over *scraper.Selectors) *scraper.Selectors {
	pick := func(dst *[]browser.Selector, src []browser.Selector) {
		if len(src) > 0 {
			*dst = src
		}
	}

	pick(&base.ListingCards, over.ListingCards)
	pick(&base.NextPage, over.NextPage)
	pick(&base.Title, over.Title)
	pick(&base.Picture, over.Picture)
	pick(&base.Description, over.Description)
	pick(&base.Price, over.Price)
	pick(&base.Rating, over.Rating)
	pick(&base.Location, over.Location)
	pick(&base.CloseModal, over.CloseModal)
	pick(&base.AmenitiesButton, over.AmenitiesButton)
	pick(&base.AmenitiesModal, over.AmenitiesModal)
	pick(&base.AmenitiesPage, over.AmenitiesPage)
	pick(&base.HouseDetails, over.HouseDetails)

	if over.PictureAttr != "" {
		base.PictureAttr = over.PictureAttr
	}
	if len(over.CurrencyMarkers) > 0 {
		base.CurrencyMarkers = over.CurrencyMarkers
	}
	if len(over.AmenitiesDocument) > 0 {
		base.AmenitiesDocument = over.AmenitiesDocument
	}
	return base
}

// validateSelectors проверяет минимальный набор селекторов
func validateSelectors(s *scraper.Selectors) error {
	required := []struct {
		name string
		list []browser.Selector
	}{
		{"listing_cards", s.ListingCards},
		{"next_page", s.NextPage},
		{"title", s.Title},
		{"price", s.Price},
		{"amenities_button", s.AmenitiesButton},
		{"amenities_modal", s.AmenitiesModal},
	}
	for _, r := range required {
		if len(r.list) == 0 {
			return fmt.Errorf("%s is required", r.name)
		}
		for i, sel := range r.list {
			if sel.IsZero() {
				return fmt.Errorf("%s[%d] is empty", r.name, i)
			}
		}
	}
	return nil
}
