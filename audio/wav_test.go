package audio

import (
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParse_RoundTrip(t *testing.T) {
	pcm := make([]byte, 32000) // one second of 16kHz mono 16-bit
	for i := range pcm {
		pcm[i] = byte(i)
	}

	data := EncodeWAV(Mono16(16000), pcm)
	require.Len(t, data, 44+len(pcm))

	format, samples, err := ParseWAV(data)
	require.NoError(t, err)
	assert.Equal(t, Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16}, format)
	assert.Equal(t, pcm, samples)
	assert.Equal(t, time.Second, format.Duration(len(samples)))
}

func TestParseWAV_SkipsUnknownChunksAndClampsStreamedSize(t *testing.T) {
	head := EncodeWAV(Format{Channels: 2, SampleRate: 22050, BitsPerSample: 16}, nil)[:36]

	// LIST chunk with an odd size, which must be padded.
	list := []byte("LIST")
	list = binary.LittleEndian.AppendUint32(list, 3)
	list = append(list, 'a', 'b', 'c', 0)

	data := []byte("data")
	data = binary.LittleEndian.AppendUint32(data, 0x7ffff000)
	data = append(data, 1, 2, 3, 4)

	payload := append(append(append([]byte{}, head...), list...), data...)

	format, samples, err := ParseWAV(payload)
	require.NoError(t, err)
	assert.Equal(t, 2, format.Channels)
	assert.Equal(t, 22050, format.SampleRate)
	assert.Equal(t, []byte{1, 2, 3, 4}, samples)
}

func TestParseWAV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("OggS0000000000000000")},
		{"no data chunk", EncodeWAV(Mono16(8000), nil)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseWAV(tt.data)
			assert.ErrorIs(t, err, ErrInvalidWAV)
		})
	}

	compressed := EncodeWAV(Mono16(8000), []byte{0, 0})
	binary.LittleEndian.PutUint16(compressed[20:22], 6) // A-law
	_, _, err := ParseWAV(compressed)
	assert.ErrorIs(t, err, ErrInvalidWAV)
	assert.Contains(t, err.Error(), "unsupported audio format 6")
}

func TestScratch_ReleaseRemovesDirectory(t *testing.T) {
	s, err := NewScratch("dex-voice-test")
	require.NoError(t, err)

	path := s.File("tts")
	assert.Contains(t, path, s.Dir())
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	dir := s.Dir()
	require.NoError(t, s.Release())
	assert.NoDirExists(t, dir)
	assert.NoError(t, s.Release())
}
