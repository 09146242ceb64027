package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// DecodableDuration reads the playable length of a wav, mp3 or flac file
// from its headers. ok is false for containers it cannot inspect (m4a, webm,
// opus); those skip the duration check.
func DecodableDuration(path string) (d time.Duration, ok bool, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		d, err = wavDuration(path)
	case ".mp3":
		d, err = mp3Duration(path)
	case ".flac":
		d, err = flacDuration(path)
	default:
		return 0, false, nil
	}
	return d, true, err
}

func wavDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid WAV file")
	}
	return dec.Duration()
}

func mp3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("invalid MP3 file: %w", err)
	}
	// Length is in bytes of 16-bit stereo PCM
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("MP3 length unknown")
	}
	seconds := float64(length) / float64(dec.SampleRate()*4)
	return time.Duration(seconds * float64(time.Second)), nil
}

func flacDuration(path string) (time.Duration, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return 0, fmt.Errorf("invalid FLAC file: %w", err)
	}
	defer stream.Close()

	if stream.Info.SampleRate == 0 {
		return 0, fmt.Errorf("FLAC sample rate unknown")
	}
	seconds := float64(stream.Info.NSamples) / float64(stream.Info.SampleRate)
	return time.Duration(seconds * float64(time.Second)), nil
}
