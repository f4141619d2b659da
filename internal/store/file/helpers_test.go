package file

import (
	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
)

func newNopLogger() logger.Logger { return logger.NewNop() }

func sampleAds() []domain.Ad {
	return []domain.Ad{
		{ID: "id1", Title: "title1", URL: "https://example.com/1"},
		{ID: "id2", Title: "title2", URL: "https://example.com/2", Fields: map[string]string{"price": "€ 90"}},
	}
}
