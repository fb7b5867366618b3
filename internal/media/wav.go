package media

import (
	"bytes"
	"encoding/binary"
)

// Speech synthesis output format.
const (
	SpeechSampleRate    = 24000
	SpeechChannels      = 1
	SpeechBitsPerSample = 16

	wavHeaderSize = 44
)

// WrapPCM prefixes raw little-endian PCM samples with a 44-byte RIFF/WAVE
// header so the result plays as a .wav file.
func WrapPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// WrapSpeech wraps PCM in the speech synthesis output format.
func WrapSpeech(pcm []byte) *Blob {
	return &Blob{
		Name:        "voiceover.wav",
		ContentType: "audio/wav",
		Data:        WrapPCM(pcm, SpeechSampleRate, SpeechChannels, SpeechBitsPerSample),
	}
}
