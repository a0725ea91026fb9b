package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/desertthunder/audiotap/internal/shared"
)

// DecodeMP3 decodes an MPEG-1/2 Layer III stream into a mono buffer at its native rate.
//
// The decoder always yields 16-bit little-endian stereo frames; mono sources are duplicated
// across both channels, so averaging them is lossless.
func DecodeMP3(data []byte) (*Buffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnreadableResource, err)
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode MP3 frames: %v", shared.ErrUnreadableResource, err)
	}

	const frame = 4
	samples := make([]float64, len(raw)/frame)
	for i := range samples {
		l := int16(binary.LittleEndian.Uint16(raw[i*frame:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*frame+2:]))
		samples[i] = (float64(l) + float64(r)) / 2 / 32768
	}
	return &Buffer{Samples: samples, SampleRate: d.SampleRate()}, nil
}

// isMP3 reports an ID3v2 tag or an MPEG audio frame sync at the start of data.
func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
