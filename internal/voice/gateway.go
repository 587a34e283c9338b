// Package voice connects the jukebox to Discord voice channels.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/jukebox"
)

// DefaultReadyTimeout bounds how long JoinVoice waits for a voice connection
// to become ready.
const DefaultReadyTimeout = 30 * time.Second

// readyPollInterval is how often a joined connection is checked for readiness.
const readyPollInterval = 50 * time.Millisecond

// discordAPI is the part of *discordgo.Session the gateway calls.
type discordAPI interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelVoiceJoin(guildID, channelID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

// Gateway resolves guilds and channels through Discord and opens voice
// connections for the bot.
type Gateway struct {
	api          discordAPI
	state        *discordgo.State
	readyTimeout time.Duration
}

var _ jukebox.VoiceGateway = (*Gateway)(nil)

// NewGateway returns a Gateway backed by s. Lookups try the state cache
// before the REST API.
func NewGateway(s *discordgo.Session, readyTimeout time.Duration) *Gateway {
	return newGateway(s, s.State, readyTimeout)
}

func newGateway(api discordAPI, state *discordgo.State, readyTimeout time.Duration) *Gateway {
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	return &Gateway{api: api, state: state, readyTimeout: readyTimeout}
}

func (g *Gateway) GuildExists(ctx context.Context, guildID string) (bool, error) {
	if g.state != nil {
		if _, err := g.state.Guild(guildID); err == nil {
			return true, nil
		}
	}

	_, err := g.api.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("unable to fetch guild %s: %w", guildID, err)
	}
	return true, nil
}

// ChannelExists reports whether channelID is a voice or stage channel of guildID.
// A channel of another kind is rejected as a bad request.
func (g *Gateway) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	var channel *discordgo.Channel
	if g.state != nil {
		channel, _ = g.state.Channel(channelID)
	}
	if channel == nil {
		var err error
		channel, err = g.api.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("unable to fetch channel %s: %w", channelID, err)
		}
	}

	if channel.GuildID != guildID {
		return false, nil
	}
	switch channel.Type {
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return true, nil
	default:
		return false, jukebox.BadRequest("Channel with id %s is not a voice channel", channelID)
	}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// JoinVoice joins the channel deafened and waits until the connection is
// ready. A connection that is not ready in time is disconnected.
func (g *Gateway) JoinVoice(ctx context.Context, guildID, channelID string) (jukebox.VoiceConn, error) {
	ctx, cancel := context.WithTimeout(ctx, g.readyTimeout)
	defer cancel()

	results := make(chan joinResult, 1)
	go func() {
		vc, err := g.api.ChannelVoiceJoin(guildID, channelID, false, true)
		results <- joinResult{vc: vc, err: err}
	}()

	var res joinResult
	select {
	case res = <-results:
	case <-ctx.Done():
		// The join is still in flight; release whatever it ends up with.
		go func() {
			if late := <-results; late.vc != nil {
				disconnect(late.vc, channelID)
			}
		}()
		return nil, fmt.Errorf("timed out joining voice channel %s: %w", channelID, ctx.Err())
	}

	if res.err != nil {
		if res.vc != nil {
			disconnect(res.vc, channelID)
		}
		return nil, fmt.Errorf("unable to join the voice channel: %w", res.err)
	}

	if err := waitReady(ctx, res.vc); err != nil {
		disconnect(res.vc, channelID)
		return nil, fmt.Errorf("voice connection for channel %s never became ready: %w", channelID, err)
	}

	return &Connection{vc: res.vc}, nil
}

func waitReady(ctx context.Context, vc *discordgo.VoiceConnection) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func disconnect(vc *discordgo.VoiceConnection, channelID string) {
	if err := vc.Disconnect(); err != nil {
		slog.Error("failed to disconnect", "channelID", channelID, "error", err)
	}
}

func isNotFound(err error) bool {
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return true
	}

	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return true
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownGuild, discordgo.ErrCodeUnknownChannel:
			return true
		}
	}
	return false
}

// Connection adapts a discordgo voice connection.
type Connection struct {
	vc *discordgo.VoiceConnection
}

var _ jukebox.VoiceConn = (*Connection)(nil)

func (c *Connection) OpusSink() chan<- []byte {
	return c.vc.OpusSend
}

func (c *Connection) Speaking(speaking bool) error {
	if err := c.vc.Speaking(speaking); err != nil {
		return fmt.Errorf("error setting speaking state to '%t': %w", speaking, err)
	}
	return nil
}

func (c *Connection) Disconnect() error {
	return c.vc.Disconnect()
}
