package jukebox

import (
	"context"
	"io"
)

// VoiceGateway resolves guilds and channels and opens voice connections.
type VoiceGateway interface {
	GuildExists(ctx context.Context, guildID string) (bool, error)
	ChannelExists(ctx context.Context, guildID, channelID string) (bool, error)
	// JoinVoice returns only once the connection is ready. Implementations
	// release a partially established connection before returning an error.
	JoinVoice(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// VoiceConn is an established voice connection.
type VoiceConn interface {
	OpusSink() chan<- []byte
	Speaking(speaking bool) error
	Disconnect() error
}

// AudioPlayer plays one stream of Opus frames at a time.
//
// Play replaces whatever is playing and returns the generation of the new
// stream. The idle callback given to the PlayerFactory receives the
// generation of the stream that finished; replaced or stopped streams never
// report idle.
type AudioPlayer interface {
	Play(src io.ReadCloser) uint64
	Pause()
	Unpause()
	Stop()
	Generation() uint64
	Attach(conn VoiceConn)
}

// PlayerFactory builds a player that calls onIdle when a stream finishes.
type PlayerFactory func(onIdle func(generation uint64)) AudioPlayer

// TrackSource resolves video metadata and opens the audio of a video as
// length-prefixed Opus frames.
type TrackSource interface {
	Lookup(ctx context.Context, videoID string) (Track, error)
	Open(ctx context.Context, videoID string) (io.ReadCloser, error)
}
