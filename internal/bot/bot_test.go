package bot

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSplitMessageShortTextIsUntouched(t *testing.T) {
	chunks := splitMessage("hello")
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("splitMessage = %v, want the text as a single chunk", chunks)
	}
}

func TestSplitMessagePrefersNewlineBoundary(t *testing.T) {
	line := strings.Repeat("a", 3000)
	text := line + "\n" + line

	chunks := splitMessage(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0] != line || chunks[1] != line {
		t.Errorf("chunks should split on the newline, lengths %d/%d", len(chunks[0]), len(chunks[1]))
	}
}

func TestSplitMessageFallsBackToSpaceBoundary(t *testing.T) {
	word := strings.Repeat("b", 2500)
	text := word + " " + word

	chunks := splitMessage(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0] != word || chunks[1] != word {
		t.Errorf("chunks should split on the space, lengths %d/%d", len(chunks[0]), len(chunks[1]))
	}
}

func TestSplitMessageHardCutsUnbrokenText(t *testing.T) {
	text := strings.Repeat("c", maxMessageLength*2+100)

	chunks := splitMessage(text)
	var total int
	for i, chunk := range chunks {
		if len(chunk) > maxMessageLength {
			t.Errorf("chunk %d is %d bytes, over the limit", i, len(chunk))
		}
		total += len(chunk)
	}
	if total != len(text) {
		t.Errorf("reassembled %d bytes of %d, unbroken text must not lose content", total, len(text))
	}
}

func TestSplitMessageKeepsMultiByteRunesIntact(t *testing.T) {
	// Space-free Thai text forces the hard-cut path.
	text := strings.Repeat("สรุปข่าวประจำวันนี้", 400)

	chunks := splitMessage(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, text should exceed the limit", len(chunks))
	}

	var reassembled strings.Builder
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is invalid UTF-8", i)
		}
		if n := utf8.RuneCountInString(chunk); n > maxMessageLength {
			t.Errorf("chunk %d is %d runes, over the limit", i, n)
		}
		reassembled.WriteString(chunk)
	}
	if reassembled.String() != text {
		t.Error("reassembled chunks differ from the input, space-free text must not lose content")
	}
}

func TestRefreshStopsAndIsIdempotent(t *testing.T) {
	var count atomic.Int32
	stop := refreshUntilStopped(context.Background(), time.Millisecond, func() { count.Add(1) })

	deadline := time.Now().Add(time.Second)
	for count.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("refresh fired %d times within a second, want at least 3", count.Load())
		}
		time.Sleep(time.Millisecond)
	}

	// Both the deferred and the inline stop call run on the success path.
	stop()
	stop()

	settled := count.Load()
	time.Sleep(20 * time.Millisecond)
	if got := count.Load(); got != settled {
		t.Errorf("refresh fired after stop: %d then %d", settled, got)
	}
}
