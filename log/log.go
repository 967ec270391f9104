// Package log routes service logs to stdout and to optional sinks: a Redis
// log list and a Discord channel.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	discordLimit = 1900
	queueSize    = 64
)

// messageSender is the part of a discord session the log channel needs.
type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Options configures Init. Discord mirroring is enabled when both the token
// and channel are set.
type Options struct {
	DiscordToken     string
	DiscordChannelID string
	// Sinks receive every log line in addition to stdout.
	Sinks []io.Writer
}

var (
	mu      sync.Mutex
	session *discordgo.Session
	discord *discordWriter
)

// openSession connects a discord bot session.
var openSession = func(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("failed to open discord session: %w", err)
	}
	return s, nil
}

// Init installs the service log output. It may be called again to replace
// the sinks; the previous discord session is closed. Stdout and the sinks
// are installed even when the discord channel cannot be opened.
func Init(opts Options) error {
	Close()

	writers := []io.Writer{os.Stdout}
	writers = append(writers, opts.Sinks...)
	log.SetOutput(io.MultiWriter(writers...))
	log.SetFlags(log.LstdFlags)

	if opts.DiscordToken == "" || opts.DiscordChannelID == "" {
		return nil
	}

	s, err := openSession(opts.DiscordToken)
	if err != nil {
		return err
	}
	mu.Lock()
	session = s
	discord = newDiscordWriter(s, opts.DiscordChannelID)
	writers = append(writers, discord)
	mu.Unlock()

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close flushes pending discord messages and closes the session.
func Close() {
	mu.Lock()
	s, d := session, discord
	session, discord = nil, nil
	mu.Unlock()

	if d != nil {
		d.close(5 * time.Second)
	}
	if s != nil {
		_ = s.Close()
	}
}

// Post sends a message to the log channel, if one is configured.
func Post(msg string) {
	mu.Lock()
	d := discord
	mu.Unlock()
	if d != nil {
		d.enqueue(msg)
	}
}

// Error logs an error with the caller's file and line.
func Error(context string, err error) {
	// Get caller info
	_, file, line, ok := runtime.Caller(1)
	var callerInfo string
	if ok {
		parts := strings.Split(file, "/")
		if len(parts) > 2 {
			file = strings.Join(parts[len(parts)-2:], "/")
		}
		callerInfo = fmt.Sprintf("%s:%d", file, line)
	}

	log.Printf("[ERROR] in %s: %s: %v", callerInfo, context, err)
}

// Fatal logs an error and then exits the program.
func Fatal(context string, err error) {
	Error(context, err)
	Close()
	os.Exit(1)
}

// discordWriter forwards log lines to a channel from a background goroutine
// so logging never waits on the discord API. Lines are dropped when the
// queue is full.
type discordWriter struct {
	sender    messageSender
	channelID string
	queue     chan string
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

func newDiscordWriter(sender messageSender, channelID string) *discordWriter {
	w := &discordWriter{
		sender:    sender,
		channelID: channelID,
		queue:     make(chan string, queueSize),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *discordWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimRight(string(p), "\n")
	// To prevent log spam, we truncate long messages for Discord.
	if len(msg) > discordLimit {
		msg = truncateUTF8(msg, discordLimit) + "..."
	}
	w.enqueue("```\n" + msg + "\n```")
	return len(p), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (w *discordWriter) enqueue(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- msg:
	default:
	}
}

func (w *discordWriter) run() {
	defer close(w.done)
	for msg := range w.queue {
		if _, err := w.sender.ChannelMessageSend(w.channelID, msg); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "[LOG] failed to post to discord: %v\n", err)
		}
	}
}

func (w *discordWriter) close(timeout time.Duration) {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-time.After(timeout):
	}
}
