package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestUsageMapAddRemoveContains exercises the basic set contract.
func TestUsageMapAddRemoveContains(t *testing.T) {
	m := NewInlineUsageMap(0)
	assert.False(t, m.Contains(5))
	m.Add(5)
	assert.True(t, m.Contains(5))
	m.Remove(5)
	assert.False(t, m.Contains(5))
}

// TestUsageMapPromotion checks that promotion from inline to
// reference encoding occurs once the inline form overflows, and that the set of page numbers is preserved exactly across that promotion.
func TestUsageMapPromotion(t *testing.T) {
	m := NewInlineUsageMap(0)
	assert.False(t, m.IsReference())

	for pn := uint32(0); pn < 10; pn++ {
		m.Add(pn)
	}
	assert.False(t, m.IsReference(), "still well within inline capacity")

	// Push a page number far enough from startPage to force promotion.
	m.Add(inlineCapacityBits + 5)
	assert.True(t, m.IsReference())

	// Membership survives promotion untouched.
	for pn := uint32(0); pn < 10; pn++ {
		assert.True(t, m.Contains(pn))
	}
	assert.True(t, m.Contains(inlineCapacityBits+5))
}

// TestUsageMapGenerationCursorRevalidation exercises the cursor's
// "reset-on-modification" contract: a cursor mid-walk notices the
// underlying map changed and keeps yielding a consistent forward order.
func TestUsageMapGenerationCursorRevalidation(t *testing.T) {
	m := NewInlineUsageMap(0)
	m.Add(1)
	m.Add(3)
	m.Add(5)

	c := m.NewCursor()
	pn, ok := c.Next()
	assert.True(t, ok)
	assert.Equal(t, uint32(1), pn)

	// Modify the map after the cursor has started.
	m.Add(2)

	pn, ok = c.Next()
	assert.True(t, ok)
	assert.Equal(t, uint32(2), pn, "cursor should observe the newly added page 2 next")

	pn, ok = c.Next()
	assert.True(t, ok)
	assert.Equal(t, uint32(3), pn)
}

// TestUsageMapForwardReverseSymmetry checks the page-
// level analogue: forward and reverse cursors visit the same set.
func TestUsageMapForwardReverseSymmetry(t *testing.T) {
	m := NewInlineUsageMap(0)
	for _, pn := range []uint32{7, 2, 9, 4, 1} {
		m.Add(pn)
	}

	fwd := m.NewCursor()
	var forward []uint32
	for {
		pn, ok := fwd.Next()
		if !ok {
			break
		}
		forward = append(forward, pn)
	}

	back := m.NewCursorAtEnd()
	var backward []uint32
	for {
		pn, ok := back.Prev()
		if !ok {
			break
		}
		backward = append(backward, pn)
	}

	if assert.Len(t, backward, len(forward)) {
		for i := range forward {
			assert.Equal(t, forward[i], backward[len(backward)-1-i])
		}
	}
}

// TestGlobalUsageMapImplicitPresence checks that pages outside the
// global reference map's tracked range are implicitly present (free).
func TestGlobalUsageMapImplicitPresence(t *testing.T) {
	m := NewGlobalUsageMap()
	assert.True(t, m.Contains(42), "untouched page is implicitly free in the global map")
	m.Remove(42)
	assert.False(t, m.Contains(42))
	m.Add(42)
	assert.True(t, m.Contains(42))
}

// TestUsageMapFingerprintChangesWithMembership is a cheap sanity check on
// the xxhash-backed generation fingerprint used by the table layer.
func TestUsageMapFingerprintChangesWithMembership(t *testing.T) {
	m := NewInlineUsageMap(0)
	f0 := m.Fingerprint()
	m.Add(11)
	f1 := m.Fingerprint()
	assert.NotEqual(t, f0, f1)
	m.Remove(11)
	f2 := m.Fingerprint()
	assert.Equal(t, f0, f2)
}
