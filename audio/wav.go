package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWAV is returned when a payload is not a decodable PCM WAV file.
var ErrInvalidWAV = errors.New("invalid wav data")

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
	headerSize       = 44
)

// Format describes the PCM layout of a WAV payload.
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// Mono16 is the layout expected by most speech recognizers.
func Mono16(sampleRate int) Format {
	return Format{Channels: 1, SampleRate: sampleRate, BitsPerSample: 16}
}

// BlockAlign returns the number of bytes in one sample frame.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// Duration returns the playback length of pcmLen bytes of sample data.
func (f Format) Duration(pcmLen int) time.Duration {
	bytesPerSecond := f.SampleRate * f.BlockAlign()
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(pcmLen) * time.Second / time.Duration(bytesPerSecond)
}

// ParseWAV reads the RIFF chunks of data and returns the PCM format and the
// raw sample bytes. Only uncompressed PCM is accepted.
func ParseWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		format  Format
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Format{}, nil, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != formatPCM && audioFormat != formatExtensible {
				return Format{}, nil, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidWAV, audioFormat)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			// Streamed writers leave the size at zero or at a placeholder, so
			// clamp to what is actually present.
			end := body + size
			if size == 0 || end > len(data) || end < body {
				end = len(data)
			}
			if format.Channels == 0 || format.SampleRate == 0 || format.BitsPerSample == 0 {
				return Format{}, nil, fmt.Errorf("%w: empty fmt chunk", ErrInvalidWAV)
			}
			return format, data[body:end], nil
		}

		offset = body + size
		if size%2 == 1 {
			offset++
		}
	}

	return Format{}, nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

// EncodeWAV wraps raw PCM samples in a canonical 44-byte WAV header.
func EncodeWAV(f Format, pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(pcm))
	writeHeader(&buf, f, len(pcm))
	buf.Write(pcm)
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, f Format, dataSize int) {
	header := make([]byte, headerSize)

	// RIFF header
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	// fmt chunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(f.SampleRate*f.BlockAlign())) // byte rate
	binary.LittleEndian.PutUint16(header[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(header[34:36], uint16(f.BitsPerSample))

	// data chunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	buf.Write(header)
}
