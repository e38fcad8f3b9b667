package postgres

import (
	"strings"
	"testing"

	"airbnb-scraper/internal/storage"
)

func TestInsertQueryMatchesValues(t *testing.T) {
	query := insertQuery()

	if !strings.HasPrefix(query, "INSERT INTO listings (url, title,") {
		t.Errorf("insertQuery() = %q", query)
	}
	if !strings.HasSuffix(query, "RETURNING id") {
		t.Errorf("insertQuery() does not return id: %q", query)
	}

	want := len(columns)
	if got := strings.Count(query, "$"); got != want {
		t.Errorf("placeholders = %d, want %d", got, want)
	}
	if got := len(values(storage.ListingDocument{})); got != want {
		t.Errorf("values() = %d items, want %d", got, want)
	}
}
