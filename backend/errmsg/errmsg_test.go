package errmsg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromField(t *testing.T) {
	err := FromField(Topics, "question")
	assert.Equal(t, TopicInvalidQuestion, err.Code)
	assert.Equal(t, "question", err.Field)
	assert.Equal(t, "Invalid question length", err.Error())

	unknown := FromField(Comments, "nope")
	assert.Equal(t, CommentInvalidComment, unknown.Code)
}

func TestLocalize(t *testing.T) {
	err := New(Ratings, RatingNotChanged)

	assert.Equal(t, "Отзыв не изменился", err.Localize(PrinterFor("ru-RU,ru;q=0.9,en;q=0.8")))
	assert.Equal(t, "Review has not changed", err.Localize(PrinterFor("en-US")))
	assert.Equal(t, "Review has not changed", err.Localize(PrinterFor("")))
	assert.Equal(t, "Review has not changed", err.Localize(PrinterFor("de")))
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("drop: %w", New(Ratings, RatingEmpty))

	assert.True(t, Is(wrapped, Ratings, RatingEmpty))
	assert.False(t, Is(wrapped, Ratings, RatingNotChanged))
	assert.False(t, Is(wrapped, Settings, RatingEmpty))
	assert.False(t, Is(fmt.Errorf("plain"), Ratings, RatingEmpty))
}

func TestCatalogComplete(t *testing.T) {
	for domain, fields := range fieldCodes {
		for field, code := range fields {
			key := fmt.Sprintf("%s.%d", domain, code)
			_, ok := catalogEntries[key]
			assert.True(t, ok, "missing message for %s (%s)", key, field)
		}
	}
}
