package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItemMeta(t *testing.T) {
	m := ParseItemMeta(map[string]string{
		MetaBreaking:     "yes",
		MetaGenre:        "Newsletter",
		MetaImageURL:     " https://cdn.example.com/a.jpg ",
		MetaImageCaption: "Harbour at dawn",
	})

	assert.False(t, m.Breaking, "unparseable flag is ignored")
	assert.Empty(t, m.Genre)
	require.NotNil(t, m.Image)
	assert.Equal(t, "https://cdn.example.com/a.jpg", m.Image.URL)
	assert.Equal(t, "Harbour at dawn", m.Image.Caption)

	assert.Equal(t, ItemMeta{}, ParseItemMeta(nil))
}

func TestParseItemMeta_Fields(t *testing.T) {
	m := ParseItemMeta(map[string]string{
		MetaBreaking:     "true",
		MetaGenre:        "opinion",
		MetaStockTickers: "NASDAQ:GOOG, MSFT",
	})

	assert.True(t, m.Breaking)
	assert.Equal(t, GenreOpinion, m.Genre)
	assert.Equal(t, []string{"NASDAQ:GOOG", " MSFT"}, m.StockTickers)
	assert.Nil(t, m.Image)
}

func TestContentItem_Age(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	item := ContentItem{PublishedAt: now.Add(-90 * time.Minute)}

	assert.Equal(t, 90*time.Minute, item.Age(now))
}
