package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Vazhid/lezgian-tts/internal/audiostore"
)

// Error taxonomy surfaced to the HTTP layer. ErrUnauthorized is a
// generic denial on purpose: it leaks nothing about whether the
// artifact exists or who owns it.
var (
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrUnauthorized      = errors.New("unauthorized access to audio file")
	ErrNotFound          = errors.New("audio file not found")
	ErrConversion        = errors.New("audio conversion failed")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

const storedFormat = "wav"

// Authorizer answers whether a stored artifact belongs to a user.
// *db.DB satisfies it via HasAudioAccess.
type Authorizer interface {
	HasAudioAccess(ctx context.Context, audioFilePath string, userID int64) (bool, error)
}

// Delivery authorizes access to stored artifacts and optionally
// transcodes them before returning bytes.
type Delivery struct {
	auth       Authorizer
	store      *audiostore.Store
	ffmpegPath string
}

func New(auth Authorizer, store *audiostore.Store, ffmpegPath string) *Delivery {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Delivery{auth: auth, store: store, ffmpegPath: ffmpegPath}
}

// Fetch returns an artifact's bytes and content type for an authorized
// user, transcoding WAV to MP3 on request. The stored file is never
// modified; conversion failures return no partial bytes.
func (d *Delivery) Fetch(ctx context.Context, filename string, userID int64, format string) ([]byte, string, error) {
	// Hard validation before any filesystem access.
	if !safeFilename(filename) {
		return nil, "", ErrInvalidFilename
	}

	if format == "" {
		format = storedFormat
	}

	authorized, err := d.auth.HasAudioAccess(ctx, filename, userID)
	if err != nil {
		// Treat a broken ownership check as a denial, not an open door.
		log.Printf("[Delivery] Access check failed for %s (user=%d): %v", filename, userID, err)
		return nil, "", ErrUnauthorized
	}
	if !authorized {
		return nil, "", ErrUnauthorized
	}

	// The DB row may outlive the file after manual cleanup.
	if !d.store.Exists(filename) {
		return nil, "", ErrNotFound
	}

	switch format {
	case storedFormat:
		data, err := d.store.Read(filename)
		if err != nil {
			return nil, "", ErrNotFound
		}
		return data, "audio/wav", nil

	case "mp3":
		data, err := d.transcodeToMP3(ctx, filename)
		if err != nil {
			log.Printf("[Delivery] Transcode failed for %s: %v", filename, err)
			return nil, "", fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return data, "audio/mpeg", nil

	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// transcodeToMP3 shells out to ffmpeg, writing the converted stream to
// stdout so no partial file ever lands next to the original.
func (d *Delivery) transcodeToMP3(ctx context.Context, filename string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-i", d.store.Path(filename),
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		"-f", "mp3",
		"pipe:1",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w (%s)", err, truncate(stderr.String(), 200))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}

	return stdout.Bytes(), nil
}

// safeFilename rejects path traversal and absolute-path markers. Only
// bare filenames inside the audio root are servable.
func safeFilename(filename string) bool {
	if filename == "" {
		return false
	}
	if strings.Contains(filename, "..") {
		return false
	}
	if strings.ContainsAny(filename, `/\`) {
		return false
	}
	return filepath.Base(filename) == filename
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
