package opus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/jonas747/ogg"
)

// DefaultFFmpegPath is used when no explicit FFmpeg binary is configured.
const DefaultFFmpegPath = "ffmpeg"

// oggHeaderPackets is the number of leading Ogg packets (OpusHead, OpusTags)
// that carry metadata instead of audio.
const oggHeaderPackets = 2

func ffmpegArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-map", "0:a",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "96000",
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"pipe:1",
	}
}

// Encode runs FFmpeg over r and returns a reader of length-prefixed Opus
// frames. The caller must Close the returned reader to stop FFmpeg; cancelling
// ctx stops it as well.
func Encode(ctx context.Context, ffmpegPath string, r io.Reader) (io.ReadCloser, error) {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}

	ctx, cancel := context.WithCancel(ctx)
	ffmpeg := exec.CommandContext(ctx, ffmpegPath, ffmpegArgs()...)
	ffmpeg.Stdin = r

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to pipe output of ffmpeg: %w", err)
	}

	if err := ffmpeg.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("unable to start ffmpeg process: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		err := repackage(stdout, pw)
		waitErr := ffmpeg.Wait()
		if err == nil && waitErr != nil && ctx.Err() == nil {
			err = fmt.Errorf("ffmpeg exited: %w", waitErr)
		}
		pw.CloseWithError(err)
	}()

	return &encodeCloser{ReadCloser: pr, cancel: cancel}, nil
}

// repackage copies the audio packets of an Ogg stream to w as length-prefixed frames.
func repackage(oggStream io.Reader, w io.Writer) error {
	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(oggStream))

	for skipped := 0; ; {
		packet, _, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("failed to decode ogg packet: %w", err)
		}
		if skipped < oggHeaderPackets {
			skipped++
			continue
		}

		if err := WriteFrame(w, packet); err != nil {
			return err
		}
	}
}

// encodeCloser stops FFmpeg when the frame stream is closed early.
type encodeCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	e.cancel()
	return err
}
