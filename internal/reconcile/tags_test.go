package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommonSegments(t *testing.T) {
	names := []string{
		"billing-export-job",
		"billing-cleanup-job",
		"billing-report-job",
		"inventory-sync",
	}

	common := CommonSegments(names, 2)
	assert.Contains(t, common, "billing", "segment above rank threshold becomes a tag")
	assert.NotContains(t, common, "job", "the 'job' segment is always excluded")
	assert.NotContains(t, common, "export", "segments at or below the threshold are dropped")
	assert.NotContains(t, common, "inventory")
}

func TestTagsFor(t *testing.T) {
	common := map[string]int{"billing": 3, "daily": 4}

	assert.Equal(t, []string{"billing", "daily"}, TagsFor("daily-billing-export", common))
	assert.Empty(t, TagsFor("inventory-sync", common))
	assert.Equal(t, []string{"billing"}, TagsFor("billing-billing-report", common), "repeated segments are deduplicated")
}
