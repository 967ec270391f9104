package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/EasterCompany/dex-voice-service/audio"
	"github.com/EasterCompany/dex-voice-service/backend"
)

// runFunc executes a command with the given stdin and returns its combined
// output.
type runFunc func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	return cmd.CombinedOutput()
}

// EspeakConfig configures the espeak-ng engine.
type EspeakConfig struct {
	// Binary is the espeak-ng executable; looked up on PATH when relative.
	Binary string
}

// Espeak synthesizes speech by running espeak-ng. Each call renders into its
// own scratch directory, which is removed before Synthesize returns.
type Espeak struct {
	binary string
	run    runFunc

	mu     sync.Mutex
	voices []Voice
}

// NewEspeak creates an espeak-ng engine.
func NewEspeak(cfg EspeakConfig) *Espeak {
	if cfg.Binary == "" {
		cfg.Binary = "espeak-ng"
	}
	return &Espeak{binary: cfg.Binary, run: runCommand}
}

func (e *Espeak) Name() string {
	return EngineEspeak
}

// Voices lists the installed voices. A successful listing is cached.
func (e *Espeak) Voices(ctx context.Context) ([]Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.voices != nil {
		return e.voices, nil
	}
	out, err := e.run(ctx, nil, e.binary, "--voices")
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w: %s", err, strings.TrimSpace(string(out)))
	}
	e.voices = parseVoices(out)
	return e.voices, nil
}

func (e *Espeak) Synthesize(ctx context.Context, text string, cfg VoiceConfig) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("espeak: %w: empty text", backend.ErrSynthesis)
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = DefaultRate
	}

	scratch, err := audio.NewScratch(ScratchPrefix)
	if err != nil {
		return nil, fmt.Errorf("espeak: %w: %w", backend.ErrSynthesis, err)
	}
	defer func() {
		if err := scratch.Release(); err != nil {
			log.Printf("[TTS] failed to remove scratch directory: %v", err)
		}
	}()

	out := scratch.File("reply")
	args := []string{"-s", strconv.Itoa(rate)}
	if v := e.resolveVoice(ctx, cfg.Voice); v != "" {
		args = append(args, "-v", v)
	}
	args = append(args, "-w", out, "--stdin")

	if output, err := e.run(ctx, strings.NewReader(text), e.binary, args...); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("espeak: %w", ctx.Err())
		}
		return nil, fmt.Errorf("espeak: %w: %w: %s", backend.ErrSynthesis, err, strings.TrimSpace(string(output)))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("espeak: %w: failed to read output: %w", backend.ErrSynthesis, err)
	}
	_, pcm, err := audio.ParseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("espeak: %w: %w", backend.ErrSynthesis, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("espeak: %w: no audio produced", backend.ErrSynthesis)
	}
	return data, nil
}

// resolveVoice maps a requested voice name to an espeak identifier. An
// unknown name, or a voice list that cannot be read, selects the default
// voice.
func (e *Espeak) resolveVoice(ctx context.Context, want string) string {
	if strings.TrimSpace(want) == "" {
		return ""
	}
	voices, err := e.Voices(ctx)
	if err != nil {
		log.Printf("[TTS] %v; using default voice", err)
		return ""
	}
	v, ok := MatchVoice(voices, want)
	if !ok {
		log.Printf("[TTS] no voice matches %q; using default voice", want)
		return ""
	}
	if v.File != "" {
		return v.File
	}
	return v.Name
}

// parseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en          (en 2)
func parseVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, Voice{
			Language: fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			File:     fields[4],
		})
	}
	return voices
}
