package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Clip holds decoded mono PCM-16 audio.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the clip length as wall time.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// wavHeader is the canonical 44-byte RIFF/WAVE header written by EncodeWAV.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// DecodeWAV decodes 16-bit PCM WAV data. Stereo input is downmixed to
// mono by averaging channels; recordings from phone systems are usually
// mono already. Chunks other than fmt and data are skipped, so files with
// LIST/INFO metadata decode fine.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate  int
		numChannels int
		bitsPerSamp int
		haveFmt     bool
		pcm         []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported audio format %d (only PCM)", format)
			}
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSamp = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	if bitsPerSamp != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d (only 16-bit)", bitsPerSamp)
	}
	if numChannels != 1 && numChannels != 2 {
		return nil, fmt.Errorf("unsupported channel count %d", numChannels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	frames := len(pcm) / (2 * numChannels)
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		if numChannels == 1 {
			samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		} else {
			l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
			r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
			samples[i] = int16((int32(l) + int32(r)) / 2)
		}
	}

	return &Clip{Samples: samples, SampleRate: sampleRate}, nil
}

// EncodeWAV serializes the clip as a canonical mono 16-bit PCM WAV file.
func (c *Clip) EncodeWAV() ([]byte, error) {
	if len(c.Samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty clip")
	}
	if c.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}

	dataSize := uint32(len(c.Samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(c.SampleRate),
		ByteRate:      uint32(c.SampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(c.Samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("writing wav header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, c.Samples); err != nil {
		return nil, fmt.Errorf("writing wav samples: %w", err)
	}
	return buf.Bytes(), nil
}

// Float32Samples converts the clip to normalized float32 samples in
// [-1, 1], the input format local speech models expect.
func (c *Clip) Float32Samples() []float32 {
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
