package scraper

import (
	"airbnb-scraper/internal/browser"
)

// Selectors упорядоченные списки стратегий по группам полей: первый непустой выигрывает
type Selectors struct {
	ListingCards []browser.Selector `yaml:"listing_cards"`
	NextPage     []browser.Selector `yaml:"next_page"`

	Title       []browser.Selector `yaml:"title"`
	Picture     []browser.Selector `yaml:"picture"`
	PictureAttr string             `yaml:"picture_attr"`
	Description []browser.Selector `yaml:"description"`
	Price       []browser.Selector `yaml:"price"`
	Rating      []browser.Selector `yaml:"rating"`
	Location    []browser.Selector `yaml:"location"`

	CurrencyMarkers []string `yaml:"currency_markers"`

	CloseModal        []browser.Selector `yaml:"close_modal"`
	AmenitiesButton   []browser.Selector `yaml:"amenities_button"`
	AmenitiesModal    []browser.Selector `yaml:"amenities_modal"`
	AmenitiesPage     []browser.Selector `yaml:"amenities_page"`
	AmenitiesDocument []string           `yaml:"amenities_document"`

	HouseDetails []browser.Selector `yaml:"house_details"`
}

// DefaultSelectors разметка Airbnb на момент написания
func DefaultSelectors() *Selectors {
	return &Selectors{
		ListingCards: []browser.Selector{
			browser.ByCSS(".atm_7l_1j28jx2"),
			browser.ByCSS(".lr88w8j"),
		},
		NextPage: []browser.Selector{
			browser.ByCSS("a[aria-label='Next']"),
		},

		Title:       []browser.Selector{browser.ByCSS("h1")},
		Picture:     []browser.Selector{browser.ByCSS(".i1ezuexe")},
		PictureAttr: "src",
		Description: []browser.Selector{
			browser.ByCSS(".l1h825yc"),
			browser.ByCSS("div[data-section-id='DESCRIPTION_DEFAULT'] span"),
		},
		Price: []browser.Selector{
			browser.ByCSS("._j1kt73"),
			browser.ByCSS("div[data-section-id='BOOK_IT_SIDEBAR'] span"),
		},
		Rating: []browser.Selector{browser.ByCSS(".r1dxllyb")},
		Location: []browser.Selector{
			browser.ByCSS(".s1qk96pm"),
			browser.ByCSS("._152qbzi"),
		},

		CurrencyMarkers: []string{"$"},

		CloseModal: []browser.Selector{
			browser.ByCSS("button[aria-label='Close']"),
		},
		AmenitiesButton: []browser.Selector{
			browser.ByXPath("//button[contains(., 'Show all') and contains(., 'amenities')]"),
		},
		AmenitiesModal: []browser.Selector{browser.ByCSS(".twad414")},
		AmenitiesPage: []browser.Selector{
			browser.ByXPath("//div[contains(@class, 'amenities')]//div[contains(@class, 'title')]"),
		},
		AmenitiesDocument: []string{"div[class*='amenities'] div[class*='title']"},

		HouseDetails: []browser.Selector{browser.ByCSS(".l7n4lsf")},
	}
}
