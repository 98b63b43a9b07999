package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentToMap(text string) map[string]string {
	m := make(map[string]string)
	blocks := Segment(text)
	for _, k := range blocks.Keys() {
		m[k], _ = blocks.Get(k)
	}
	return m
}

func TestMerge(t *testing.T) {
	existing := "NrZam: 100\nold version\n\nNrZam: 200\nkeep me"
	incoming := "NrZam: 100\nnew version\n\nNrZam: 300\nbrand new"

	res := Merge(existing, incoming)

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 3, res.Total)

	merged := segmentToMap(res.Text)
	assert.Equal(t, "NrZam: 100\nnew version", merged["100"])
	assert.Equal(t, "NrZam: 200\nkeep me", merged["200"])
	assert.Equal(t, "NrZam: 300\nbrand new", merged["300"])
}

func TestMergeIdempotent(t *testing.T) {
	existing := "NrZam: 100\nfoo"
	incoming := "NrZam: 100\nupdated\n\nNrZam: 200\nbar"

	first := Merge(existing, incoming)
	second := Merge(first.Text, incoming)

	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, segmentToMap(first.Text), segmentToMap(second.Text))
}

func TestMergeEmptyIncoming(t *testing.T) {
	existing := "NrZam: 100\nfoo\n\nNrZam: 200\nbar"

	res := Merge(existing, "")

	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, segmentToMap(existing), segmentToMap(res.Text))
}

func TestMergeIntoEmptyPool(t *testing.T) {
	res := Merge("", "NrZam: 100\nfoo")

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Total)
}

func TestMergeSentinelNotCounted(t *testing.T) {
	// An unsegmentable submission carries its text through but contributes
	// no orders to the counts.
	res := Merge("NrZam: 100\nfoo", "loose notes without numbers")

	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Total)

	merged := Segment(res.Text)
	require.True(t, merged.Has("100"))
}
