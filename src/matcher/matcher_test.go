package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

func testCandidates() []models.MCandidate {
	return []models.MCandidate{
		{Name: "alice", Aliases: []string{"alice anderson", "aliceforpresident"}},
		{Name: "bob", Aliases: []string{"bob baker"}},
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "vote for alice!", Normalize("  Vote   FOR\tAlice! "))
	assert.Equal(t, "", Normalize("   \t\n "))
}

func TestMatchCaseInsensitive(t *testing.T) {
	m := NewMatcher(testCandidates())

	matched := m.Match("ALICE is leading the debate")
	assert.Equal(t, []string{"alice"}, matched)
}

func TestMatchAlias(t *testing.T) {
	m := NewMatcher(testCandidates())

	matched := m.Match("big rally for AliceForPresident tonight")
	assert.Equal(t, []string{"alice"}, matched)
}

func TestMatchMultipleCandidates(t *testing.T) {
	m := NewMatcher(testCandidates())

	matched := m.Match("Alice and Bob faced off tonight")
	assert.ElementsMatch(t, []string{"alice", "bob"}, matched)
}

func TestMatchDedupesWithinCandidate(t *testing.T) {
	m := NewMatcher(testCandidates())

	// Name and alias both present: the candidate matches once.
	matched := m.Match("alice anderson, known as alice")
	assert.Equal(t, []string{"alice"}, matched)
}

func TestMatchNoHit(t *testing.T) {
	m := NewMatcher(testCandidates())

	assert.Empty(t, m.Match("nothing political here"))
	assert.Empty(t, m.Match(""))
}

func TestNames(t *testing.T) {
	m := NewMatcher(testCandidates())
	assert.Equal(t, []string{"alice", "bob"}, m.Names())
}
