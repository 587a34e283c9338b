package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/glizzus/jukebox/internal/jukebox"
	"github.com/glizzus/jukebox/internal/opus"
)

// FrameDuration is the playback length of one Opus frame.
const FrameDuration = 20 * time.Millisecond

// DefaultSendTimeout is how long a frame may wait for the voice connection
// before the stream is abandoned.
const DefaultSendTimeout = time.Minute

// ErrVoiceConnClosed is reported when the voice connection stops accepting frames.
var ErrVoiceConnClosed = errors.New("voice connection is not accepting audio")

// Player streams length-prefixed Opus frames into a voice connection, one
// stream at a time. Without a connection it keeps consuming frames at
// playback speed, so a track progresses and ends even when nobody listens.
type Player struct {
	onIdle        func(generation uint64)
	frameInterval time.Duration
	sendTimeout   time.Duration

	mu         sync.Mutex
	conn       jukebox.VoiceConn
	generation uint64
	cancel     context.CancelFunc
	paused     bool
	// resume is closed when the player is unpaused.
	resume chan struct{}
}

var _ jukebox.AudioPlayer = (*Player)(nil)

type PlayerOption func(*Player)

// WithFrameInterval sets how fast frames are consumed while no connection is attached.
func WithFrameInterval(d time.Duration) PlayerOption {
	return func(p *Player) { p.frameInterval = d }
}

func WithSendTimeout(d time.Duration) PlayerOption {
	return func(p *Player) { p.sendTimeout = d }
}

// NewPlayer returns an idle player. onIdle is called with the generation of
// every stream that ends on its own or fails.
func NewPlayer(onIdle func(generation uint64), opts ...PlayerOption) *Player {
	p := &Player{
		onIdle:        onIdle,
		frameInterval: FrameDuration,
		sendTimeout:   DefaultSendTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Factory adapts NewPlayer to a jukebox.PlayerFactory.
func Factory(opts ...PlayerOption) jukebox.PlayerFactory {
	return func(onIdle func(uint64)) jukebox.AudioPlayer {
		return NewPlayer(onIdle, opts...)
	}
}

func (p *Player) Attach(conn jukebox.VoiceConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = conn
}

func (p *Player) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Play stops the current stream, if any, and starts src unpaused.
// The stopped stream does not report idle.
func (p *Player) Play(src io.ReadCloser) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.generation++

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go p.stream(ctx, p.generation, src)
	return p.generation
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.resume = make(chan struct{})
}

func (p *Player) Unpause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unpauseLocked()
}

// Stop ends the current stream without reporting idle.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.unpauseLocked()
}

func (p *Player) unpauseLocked() {
	if !p.paused {
		return
	}
	p.paused = false
	close(p.resume)
	p.resume = nil
}

// waitUnpaused blocks while the player is paused.
func (p *Player) waitUnpaused(ctx context.Context) error {
	p.mu.Lock()
	resume := p.resume
	p.mu.Unlock()

	if resume == nil {
		return nil
	}
	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) sink() (jukebox.VoiceConn, chan<- []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil, nil
	}
	return p.conn, p.conn.OpusSink()
}

func (p *Player) stream(ctx context.Context, generation uint64, src io.ReadCloser) {
	var closeOnce sync.Once
	closeSrc := func() {
		closeOnce.Do(func() {
			if err := src.Close(); err != nil {
				slog.Debug("failed to close audio stream", "generation", generation, "error", err)
			}
		})
	}
	// A read blocked on a slow source must not outlive cancellation.
	stopClose := context.AfterFunc(ctx, closeSrc)
	defer stopClose()
	defer closeSrc()

	conn, _ := p.sink()
	if conn != nil {
		if err := conn.Speaking(true); err != nil {
			slog.Warn("failed to start speaking", "error", err)
		}
		defer func() {
			if err := conn.Speaking(false); err != nil {
				slog.Warn("failed to stop speaking", "error", err)
			}
		}()
	}

	err := p.pump(ctx, opus.NewFrameReader(src))
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		slog.Error("audio stream failed", "generation", generation, "error", err)
	}
	if p.onIdle != nil {
		p.onIdle(generation)
	}
}

func (p *Player) pump(ctx context.Context, frames *opus.FrameReader) error {
	ticker := time.NewTicker(p.frameInterval)
	defer ticker.Stop()

	for {
		if err := p.waitUnpaused(ctx); err != nil {
			return err
		}

		frame, err := frames.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		_, sink := p.sink()
		if sink == nil {
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		timeout := time.NewTimer(p.sendTimeout)
		select {
		case sink <- frame:
			timeout.Stop()
		case <-timeout.C:
			return ErrVoiceConnClosed
		case <-ctx.Done():
			timeout.Stop()
			return ctx.Err()
		}
	}
}
