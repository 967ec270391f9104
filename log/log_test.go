package log

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, channelID+"|"+content)
	return &discordgo.Message{}, nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func TestInit_WritesToSinks(t *testing.T) {
	var sink bytes.Buffer
	require.NoError(t, Init(Options{Sinks: []io.Writer{&sink}}))
	defer log.SetOutput(os.Stderr)

	log.Printf("[TEST] hello")
	assert.Contains(t, sink.String(), "[TEST] hello")
}

func TestError_IncludesCaller(t *testing.T) {
	var sink bytes.Buffer
	require.NoError(t, Init(Options{Sinks: []io.Writer{&sink}}))
	defer log.SetOutput(os.Stderr)

	Error("failed to reply", errors.New("boom"))
	out := sink.String()
	assert.Contains(t, out, "[ERROR] in log/log_test.go:")
	assert.Contains(t, out, "failed to reply: boom")
}

func TestDiscordWriter_TruncatesAndFlushes(t *testing.T) {
	sender := &recordingSender{}
	w := newDiscordWriter(sender, "chan-1")

	n, err := w.Write([]byte(strings.Repeat("x", 3000) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, 3001, n)
	w.enqueue("plain")

	w.close(time.Second)
	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[0], "chan-1|```\n"))
	assert.Contains(t, msgs[0], strings.Repeat("x", discordLimit)+"...")
	assert.NotContains(t, msgs[0], strings.Repeat("x", discordLimit+1))
	assert.Equal(t, "chan-1|plain", msgs[1])

	// Writes after close are dropped, not panics.
	_, err = w.Write([]byte("late"))
	assert.NoError(t, err)
	w.close(time.Second)
}

func TestInit_DiscordFailureKeepsSinks(t *testing.T) {
	orig := openSession
	openSession = func(string) (*discordgo.Session, error) {
		return nil, errors.New("failed to open discord session: 4004 authentication failed")
	}
	defer func() { openSession = orig }()

	var sink bytes.Buffer
	err := Init(Options{DiscordToken: "bogus", DiscordChannelID: "1", Sinks: []io.Writer{&sink}})
	defer log.SetOutput(os.Stderr)
	require.Error(t, err)

	log.Print("after init")
	assert.Contains(t, sink.String(), "after init")
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 5))
	assert.Equal(t, "ab", truncateUTF8("abc", 2))
	// "é" is two bytes; cutting inside it backs off to the rune start.
	assert.Equal(t, "a", truncateUTF8("aé", 2))
	assert.Equal(t, "aé", truncateUTF8("aé", 3))
}

func TestDiscordWriter_TruncatesOnRuneBoundary(t *testing.T) {
	sender := &recordingSender{}
	w := newDiscordWriter(sender, "chan-1")

	_, err := w.Write([]byte("xx" + strings.Repeat("€", discordLimit)))
	require.NoError(t, err)
	w.close(time.Second)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.True(t, utf8.ValidString(msgs[0]))
	assert.Contains(t, msgs[0], "...")
}
