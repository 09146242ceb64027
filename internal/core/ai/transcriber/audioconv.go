package transcriber

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/gruf/go-ffmpreg/ffmpreg"
	"codeberg.org/gruf/go-ffmpreg/wasm"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
	"github.com/tetratelabs/wazero"
)

// whisperSampleRate is the only rate whisper.cpp accepts.
const whisperSampleRate = 16000

// loadSamples decodes any supported audio file into 16 kHz mono float32
// samples. MP3, FLAC and WAV decode in pure Go; other containers (m4a, webm,
// opus) go through the embedded ffmpeg WASM build.
func loadSamples(ctx context.Context, filePath string) ([]float32, error) {
	var samples []float32
	var sampleRate int
	var err error

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		samples, sampleRate, err = readMP3Samples(filePath)
	case ".flac":
		samples, sampleRate, err = readFLACSamples(filePath)
	case ".wav":
		samples, sampleRate, err = readWAVSamples(filePath)
	default:
		tmp, cleanup, convErr := convertToWAV(ctx, filePath)
		if convErr != nil {
			return nil, convErr
		}
		defer cleanup()
		samples, sampleRate, err = readWAVSamples(tmp)
	}
	if err != nil {
		return nil, err
	}

	return resampleTo16kHz(samples, sampleRate), nil
}

// ensureWAV returns a 16 kHz mono WAV path for filePath, written next to it.
func ensureWAV(ctx context.Context, filePath string) (string, func(), error) {
	samples, err := loadSamples(ctx, filePath)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), "whisper-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	cleanup := func() { os.Remove(tmpPath) }
	if err := writeWAV(tmpPath, samples, whisperSampleRate); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmpPath, cleanup, nil
}

// readMP3Samples reads MP3 and returns float32 samples.
func readMP3Samples(filePath string) ([]float32, int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	sampleRate := decoder.SampleRate()
	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, err
	}

	// go-mp3 always yields stereo 16-bit little-endian PCM
	numSamples := len(data) / 4
	samples := make([]float32, numSamples)

	const maxInt16 = 32768.0
	for i := 0; i < numSamples; i++ {
		left := int16(data[i*4]) | int16(data[i*4+1])<<8
		right := int16(data[i*4+2]) | int16(data[i*4+3])<<8
		mono := (int32(left) + int32(right)) / 2
		samples[i] = float32(mono) / maxInt16
	}

	return samples, sampleRate, nil
}

// readFLACSamples reads FLAC and returns float32 samples.
func readFLACSamples(filePath string) ([]float32, int, error) {
	stream, err := flac.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	sampleRate := int(stream.Info.SampleRate)
	nChannels := int(stream.Info.NChannels)
	maxVal := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		nSamples := len(frame.Subframes[0].Samples)
		for i := 0; i < nSamples; i++ {
			var mono int64
			for ch := 0; ch < nChannels; ch++ {
				mono += int64(frame.Subframes[ch].Samples[i])
			}
			mono /= int64(nChannels)
			samples = append(samples, float32(mono)/maxVal)
		}
	}

	return samples, sampleRate, nil
}

// readWAVSamples reads a PCM WAV file and downmixes it to mono float32.
func readWAVSamples(filePath string) ([]float32, int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		channels = 1
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth < 8 {
		bitDepth = 16
	}
	maxVal := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data)/channels)
	for i := range samples {
		var mono int
		for ch := 0; ch < channels; ch++ {
			mono += buf.Data[i*channels+ch]
		}
		samples[i] = float32(mono/channels) / maxVal
	}

	return samples, int(decoder.SampleRate), nil
}

// convertToWAV uses embedded ffmpeg WASM to produce a 16 kHz mono WAV.
func convertToWAV(ctx context.Context, inputPath string) (string, func(), error) {
	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(absInput), "ffmpeg-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	outputPath := tmp.Name()
	tmp.Close()
	cleanup := func() { os.Remove(outputPath) }

	dir := filepath.Dir(absInput)
	args := wasm.Args{
		Stderr: io.Discard,
		Stdout: io.Discard,
		Args: []string{
			"-i", absInput,
			"-ar", "16000",
			"-ac", "1",
			"-c:a", "pcm_s16le",
			"-y",
			outputPath,
		},
		Config: func(cfg wazero.ModuleConfig) wazero.ModuleConfig {
			return cfg.WithFSConfig(wazero.NewFSConfig().WithDirMount(dir, dir))
		},
	}

	rc, err := ffmpreg.Ffmpeg(ctx, args)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("ffmpeg failed: %w", err)
	}
	if rc != 0 {
		cleanup()
		return "", nil, fmt.Errorf("ffmpeg exited with code %d", rc)
	}

	return outputPath, cleanup, nil
}

// writeWAV writes float32 samples to a 16-bit mono WAV file.
func writeWAV(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)

	intBuf := &audio.IntBuffer{
		Data:           make([]int, len(samples)),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		intBuf.Data[i] = int(s * 32767)
	}

	if err := encoder.Write(intBuf); err != nil {
		return err
	}
	return encoder.Close()
}

// resampleTo16kHz resamples audio using linear interpolation.
func resampleTo16kHz(samples []float32, srcRate int) []float32 {
	if srcRate == whisperSampleRate || srcRate <= 0 {
		return samples
	}

	ratio := float64(srcRate) / whisperSampleRate
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}
