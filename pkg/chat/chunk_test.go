package chat

import (
	"math/rand"
	"strings"
	"testing"
)

// rejoin reverses Split: the separator each split consumed was either a
// newline or a space; reassembly uses the original text to verify order.
func TestSplitRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"garden", "jewel", "hero", "pool", "apr", "stake", "quest"}

	for trial := 0; trial < 50; trial++ {
		var sb strings.Builder
		n := 1 + rng.Intn(800)
		for i := 0; i < n; i++ {
			sb.WriteString(words[rng.Intn(len(words))])
			switch rng.Intn(6) {
			case 0:
				sb.WriteByte('\n')
			default:
				sb.WriteByte(' ')
			}
		}
		text := strings.TrimRight(sb.String(), " \n")
		limit := 40 + rng.Intn(200)

		chunks := Split(text, limit)
		for i, ch := range chunks {
			if len(ch) > limit {
				t.Fatalf("trial %d: chunk %d has %d bytes > limit %d", trial, i, len(ch), limit)
			}
		}

		// Reassemble: chunks concatenated must equal the input with each
		// consumed boundary restored. Walk the original to recover them.
		var rebuilt strings.Builder
		pos := 0
		for i, ch := range chunks {
			rebuilt.WriteString(ch)
			pos += len(ch)
			if i < len(chunks)-1 && pos < len(text) && (text[pos] == '\n' || text[pos] == ' ') {
				rebuilt.WriteByte(text[pos])
				pos++
			}
		}
		if rebuilt.String() != text {
			t.Fatalf("trial %d: round trip mismatch", trial)
		}
	}
}

func TestSplitShortTextUntouched(t *testing.T) {
	chunks := Split("short message", 2000)
	if len(chunks) != 1 || chunks[0] != "short message" {
		t.Errorf("got %q", chunks)
	}
}

func TestSplitPrefersLineBoundaries(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
	chunks := Split(text, 40)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks want 2", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 30) {
		t.Errorf("first chunk should end at the newline, got %q", chunks[0])
	}
}

func TestSplitHardCutsLongToken(t *testing.T) {
	text := strings.Repeat("x", 95)
	chunks := Split(text, 40)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks want 3", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Error("hard-cut chunks must concatenate to the input")
	}
}
