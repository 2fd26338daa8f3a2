package synth

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PCM16 mono RIFF/WAVE codec. The model emits float samples; files on
// disk are standard 16-bit little-endian WAV so any player (and ffmpeg,
// for transcoding) can read them.

const wavHeaderSize = 44

// EncodeWAV serializes mono float samples into a PCM16 WAV byte stream.
// Samples are clamped to [-1, 1] before quantization.
func EncodeWAV(samples []float64, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, sample := range samples {
		clamped := math.Max(-1, math.Min(1, sample))
		binary.LittleEndian.PutUint16(
			buf[wavHeaderSize+i*2:],
			uint16(int16(clamped*32767)),
		)
	}

	return buf
}

// DecodeWAV parses a PCM16 mono WAV byte stream back into float samples.
// Used by engines that return encoded audio rather than raw samples.
func DecodeWAV(data []byte) ([]float64, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE stream")
	}

	audioFormat := binary.LittleEndian.Uint16(data[20:22])
	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])

	if audioFormat != 1 || bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", audioFormat, bitsPerSample)
	}
	if channels < 1 {
		return nil, 0, fmt.Errorf("invalid channel count %d", channels)
	}

	pcm := data[wavHeaderSize:]
	frameSize := channels * 2
	frames := len(pcm) / frameSize

	// Downmix to mono by taking the first channel.
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*frameSize:]))
		samples[i] = float64(v) / 32767
	}

	return samples, sampleRate, nil
}
