package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/types"
)

// Transcriber converts an audio file to text. Implemented by a
// speech-to-text binding; nil disables media extraction.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// AudioDownloader fetches the audio track for a media URL into a local
// file and returns its path. For podcast feeds the default HTTP
// downloader is enough; video sites need a dedicated implementation.
type AudioDownloader interface {
	Download(ctx context.Context, mediaURL, destDir string) (string, error)
}

const (
	downloadTimeout   = 10 * time.Minute
	transcribeTimeout = 15 * time.Minute
	maxAudioBytes     = 500 << 20
)

// MediaExtractor handles youtube and podcast documents: download the
// audio to a temp file, transcribe it, and discard the file.
type MediaExtractor struct {
	downloader  AudioDownloader
	transcriber Transcriber
	logger      zerolog.Logger
}

// NewMediaExtractor creates a media extractor. downloader may be nil to
// use plain HTTP download; a nil transcriber makes the kinds unavailable.
func NewMediaExtractor(downloader AudioDownloader, transcriber Transcriber) *MediaExtractor {
	if downloader == nil {
		downloader = httpDownloader{}
	}
	return &MediaExtractor{
		downloader:  downloader,
		transcriber: transcriber,
		logger:      log.WithComponent("extractor.media"),
	}
}

// Extract downloads and transcribes a media URL
func (e *MediaExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	if input.URL == "" {
		return nil, fmt.Errorf("%w: media extraction requires a URL", types.ErrInvalidInput)
	}
	if e.transcriber == nil {
		return nil, fmt.Errorf("%w: no transcriber configured", types.ErrExtractorUnavailable)
	}

	tmpDir, err := os.MkdirTemp("", "docstream-media-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractorFailed, err)
	}
	defer os.RemoveAll(tmpDir)

	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	audioPath, err := e.downloader.Download(dlCtx, input.URL, tmpDir)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", types.ErrExtractorFailed, input.URL, err)
	}

	txCtx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	transcript, err := e.transcriber.Transcribe(txCtx, audioPath)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: transcribe %s: %v", types.ErrExtractorFailed, input.URL, err)
	}

	transcript = strings.TrimSpace(strings.ToValidUTF8(transcript, "�"))
	e.logger.Info().Str("url", input.URL).Int("transcript_len", len(transcript)).Msg("media transcribed")

	return &Result{
		RawText:           transcript,
		FormattedMarkdown: transcript,
		Metadata:          map[string]string{"url": input.URL},
	}, nil
}

// httpDownloader fetches the URL body directly. Suitable for podcast
// enclosures that point straight at the audio file.
type httpDownloader struct{}

func (httpDownloader) Download(ctx context.Context, mediaURL, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(destDir, "audio-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxAudioBytes)); err != nil {
		return "", err
	}
	return f.Name(), nil
}
