package bracket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanUnmatched_TracksOpenBrackets(t *testing.T) {
	stack := scanUnmatched("func Foo() {\n  if x {\n")
	require.Equal(t, []rune{'{', '{'}, stack)
}

func TestOnAccept_RemembersUnmatchedOpeners(t *testing.T) {
	s := New()
	s.OnAccept("file:///a.go", "func Foo() {\n  return")

	// The remembered '{' closes cleanly...
	closing := s.Seed("file:///a.go", true, "", "")
	require.True(t, closing.Push('}'))

	// ...but a mismatched closer against the same remembered opener ends the stream.
	mismatched := s.Seed("file:///a.go", true, "", "")
	require.False(t, mismatched.Push(')'))
}

func TestOnAccept_BalancedCompletion_RemembersNothing(t *testing.T) {
	s := New()
	s.OnAccept("file:///a.go", "func Foo() {}")

	tracker := s.Seed("file:///a.go", true, "", "")
	require.True(t, tracker.Push('a'))
}

func TestTracker_PushOpenerThenMatchingCloser(t *testing.T) {
	tr := &Tracker{}
	require.True(t, tr.Push('('))
	require.True(t, tr.Push(')'))
}

func TestTracker_UnmatchedCloserEndsStream(t *testing.T) {
	tr := &Tracker{}
	require.False(t, tr.Push(')'))
}

func TestTracker_ClosersAllowedBeforeFirstToken(t *testing.T) {
	tr := &Tracker{beforeFirstToken: true}
	require.True(t, tr.Push(')'))
	require.True(t, tr.Push(' '))
	require.True(t, tr.Push('x')) // first real token ends the leniency window
	require.False(t, tr.Push(')'))
}

func TestSeed_SingleLine_SeedsFromPrefixAndSuffix(t *testing.T) {
	s := New()
	tracker := s.Seed("file:///a.go", false, "foo(", ")")
	require.True(t, tracker.Push('x'))
}

func TestSeed_SingleLine_PushesOpenerForLeadingSuffixCloser(t *testing.T) {
	s := New()
	tracker := s.Seed("file:///a.go", false, "", ")")
	require.True(t, tracker.Push('x')) // Seed starts with no before-first-token leniency
	require.True(t, tracker.Push(')')) // matches the opener seeded for the suffix's leading closer
}
