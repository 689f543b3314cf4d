// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package credibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

func TestScoreFor(t *testing.T) {
	tests := []struct {
		category    types.SourceCategory
		wantScore   float64
		wantPrimary bool
	}{
		{types.CategoryWikipedia, 0.75, false},
		{types.CategoryAcademicPaper, 0.95, false},
		{types.CategoryArxivPaper, 0.90, false},
		{types.CategoryManual, 0.50, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			score, primary, err := ScoreFor(tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantPrimary, primary)
		})
	}
}

func TestScoreForUnknownCategoryFails(t *testing.T) {
	_, _, err := ScoreFor("news_article")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnknownSourceCategory)
}

func TestEveryCategoryHasAnEntry(t *testing.T) {
	assert.ElementsMatch(t, types.AllCategories, Categories())
	for _, c := range types.AllCategories {
		score, _, err := ScoreFor(c)
		require.NoError(t, err, c)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}
