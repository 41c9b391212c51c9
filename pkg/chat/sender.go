// Package chat is the outbound message surface. The chat framework itself is
// an external collaborator; only direct sends are wired here.
package chat

import (
	"context"
	"strings"
	"time"
)

// MessageLimit is the per-message hard cap imposed by the chat transport.
const MessageLimit = 2000

// chunkDelay spaces sequential chunks so the transport keeps ordering.
const chunkDelay = 500 * time.Millisecond

// Sender delivers one direct message to a chat user.
type Sender interface {
	SendDirect(ctx context.Context, chatUserID, text string) error
}

// Split breaks text into chunks of at most limit bytes, preferring line
// boundaries, then word boundaries, hard-cutting only when a single word
// exceeds the limit. Joining the chunks in order (with the separators the
// split consumed) reproduces the input.
func Split(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	rest := text
	for len(rest) > limit {
		cut := strings.LastIndex(rest[:limit+1], "\n")
		if cut <= 0 {
			cut = strings.LastIndex(rest[:limit+1], " ")
		}
		if cut <= 0 {
			cut = limit // single over-long token, hard cut
			chunks = append(chunks, rest[:cut])
			rest = rest[cut:]
			continue
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[cut+1:] // boundary char is consumed by the split
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// SendChunked splits text under the transport cap and sends the chunks in
// order with the standard spacing.
func SendChunked(ctx context.Context, s Sender, chatUserID, text string) error {
	chunks := Split(text, MessageLimit)
	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(chunkDelay):
			}
		}
		if err := s.SendDirect(ctx, chatUserID, chunk); err != nil {
			return err
		}
	}
	return nil
}
