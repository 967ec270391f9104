package stt

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/EasterCompany/dex-voice-service/audio"
	"github.com/EasterCompany/dex-voice-service/backend"
)

type fakeSpeech struct {
	results   []*speechpb.SpeechRecognitionResult
	err       error
	sync      int
	longRun   int
	lastRate  int32
	closed    bool
	lastAudio []byte
}

func (f *fakeSpeech) Recognize(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	f.sync++
	f.lastRate = req.GetConfig().GetSampleRateHertz()
	f.lastAudio = req.GetAudio().GetContent()
	if f.err != nil {
		return nil, f.err
	}
	return &speechpb.RecognizeResponse{Results: f.results}, nil
}

func (f *fakeSpeech) LongRunningRecognize(_ context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	f.longRun++
	f.lastRate = req.GetConfig().GetSampleRateHertz()
	if f.err != nil {
		return nil, f.err
	}
	return &speechpb.LongRunningRecognizeResponse{Results: f.results}, nil
}

func (f *fakeSpeech) Close() error {
	f.closed = true
	return nil
}

func newTestGoogle(fake *fakeSpeech) (*Google, *int) {
	g := NewGoogle(GoogleConfig{APIKey: "default-key"})
	dials := 0
	g.dial = func(context.Context, ...option.ClientOption) (speechAPI, error) {
		dials++
		return fake, nil
	}
	return g, &dials
}

func alt(text string, confidence float32) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text, Confidence: confidence}},
	}
}

func TestGoogle_TranscribeJoinsResults(t *testing.T) {
	fake := &fakeSpeech{results: []*speechpb.SpeechRecognitionResult{alt("hello", 0.9), alt(" world ", 0.7)}}
	g, _ := newTestGoogle(fake)

	pcm := []byte{1, 0, 2, 0}
	res, err := g.Transcribe(context.Background(), audio.EncodeWAV(audio.Mono16(16000), pcm), Credentials{})

	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)
	assert.Equal(t, 1, fake.sync)
	assert.Equal(t, int32(16000), fake.lastRate)
	assert.Equal(t, pcm, fake.lastAudio)
}

func TestGoogle_LongAudioUsesLongRunning(t *testing.T) {
	fake := &fakeSpeech{results: []*speechpb.SpeechRecognitionResult{alt("long", 0)}}
	g, _ := newTestGoogle(fake)

	// 60 seconds of 8kHz mono 16-bit audio.
	pcm := make([]byte, 8000*2*60)
	res, err := g.Transcribe(context.Background(), audio.EncodeWAV(audio.Mono16(8000), pcm), Credentials{})

	require.NoError(t, err)
	assert.Equal(t, 1, fake.longRun)
	assert.Equal(t, 0, fake.sync)
	assert.Equal(t, Result{Text: "long", Confidence: defaultGoogleConfidence}, res)
}

func TestGoogle_ClientsAreCachedPerKey(t *testing.T) {
	fake := &fakeSpeech{}
	g, dials := newTestGoogle(fake)
	wav := audio.EncodeWAV(audio.Mono16(16000), []byte{0, 0})

	for i := 0; i < 3; i++ {
		_, err := g.Transcribe(context.Background(), wav, Credentials{})
		require.NoError(t, err)
	}
	_, err := g.Transcribe(context.Background(), wav, Credentials{APIKey: "caller-key"})
	require.NoError(t, err)

	assert.Equal(t, 2, *dials)

	g.Close()
	assert.True(t, fake.closed)
}

func TestGoogle_NoSpeechIsEmptyResult(t *testing.T) {
	g, _ := newTestGoogle(&fakeSpeech{})

	res, err := g.Transcribe(context.Background(), audio.EncodeWAV(audio.Mono16(16000), []byte{0, 0}), Credentials{})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestGoogle_Errors(t *testing.T) {
	t.Run("invalid wav", func(t *testing.T) {
		g, dials := newTestGoogle(&fakeSpeech{})
		_, err := g.Transcribe(context.Background(), []byte("not audio"), Credentials{})
		assert.ErrorIs(t, err, audio.ErrInvalidWAV)
		assert.Zero(t, *dials)
	})

	t.Run("8-bit samples", func(t *testing.T) {
		g, _ := newTestGoogle(&fakeSpeech{})
		wav := audio.EncodeWAV(audio.Format{Channels: 1, SampleRate: 8000, BitsPerSample: 8}, []byte{128})
		_, err := g.Transcribe(context.Background(), wav, Credentials{})
		assert.ErrorIs(t, err, audio.ErrInvalidWAV)
	})

	t.Run("service error", func(t *testing.T) {
		g, _ := newTestGoogle(&fakeSpeech{err: status.Error(codes.Unavailable, "backend down")})
		_, err := g.Transcribe(context.Background(), audio.EncodeWAV(audio.Mono16(16000), []byte{0, 0}), Credentials{})
		assert.ErrorIs(t, err, backend.ErrServiceUnavailable)
		assert.Contains(t, err.Error(), "Unavailable")
	})

	t.Run("dial failure", func(t *testing.T) {
		g := NewGoogle(GoogleConfig{})
		g.dial = func(context.Context, ...option.ClientOption) (speechAPI, error) {
			return nil, errors.New("no credentials")
		}
		_, err := g.Transcribe(context.Background(), audio.EncodeWAV(audio.Mono16(16000), []byte{0, 0}), Credentials{})
		assert.ErrorIs(t, err, backend.ErrServiceUnavailable)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		g, _ := newTestGoogle(&fakeSpeech{err: status.Error(codes.Canceled, "context canceled")})
		_, err := g.Transcribe(ctx, audio.EncodeWAV(audio.Mono16(16000), []byte{0, 0}), Credentials{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, backend.ErrServiceUnavailable)
	})
}
