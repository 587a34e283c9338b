package handler

import (
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/generator"
	"github.com/glizzus/jukebox/internal/presenters"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)

// DiscordSession is the part of *discordgo.Session interaction handlers use.
type DiscordSession interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error
}

var _ DiscordSession = (*discordgo.Session)(nil)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID, "guilds", len(r.Guilds))
}

// NewInteractionHandler routes interactions through the bot's flows.
// Errors meant for the user are sent back as an ephemeral reply.
func NewInteractionHandler(
	publicURL string,
	voiceStates VoiceStates,
	sessions Sessions,
	idGenerator generator.Generator[string],
) func(DiscordSession, *discordgo.InteractionCreate) {
	fm := NewFlowManager(idGenerator)
	fm.RegisterFlow(PingFlow)
	fm.RegisterFlow(NewJukeboxFlow(publicURL, voiceStates, sessions))

	return func(s DiscordSession, i *discordgo.InteractionCreate) {
		err := fm.Router(s, i)
		if err == nil {
			return
		}

		var userErr *UserError
		if errors.As(err, &userErr) {
			if err := s.InteractionRespond(i.Interaction, presenters.BuildErrorResponse(userErr.Message)); err != nil {
				slog.Error("Failed to respond with user error", "error", err)
			}
			return
		}
		slog.Error("Failed to handle interaction", "interactionID", i.ID, "error", err)
	}
}

// MakeInteractionCreateHandler adapts h to discordgo's handler signature.
func MakeInteractionCreateHandler(h func(DiscordSession, *discordgo.InteractionCreate)) InteractionCreateHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		h(s, i)
	}
}

type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
}

// NewSession builds a Discord session that tracks guilds and voice states,
// which voice joins and /jukebox rely on.
func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if handlers.Ready != nil {
		s.AddHandler(handlers.Ready)
	}
	if handlers.InteractionCreate != nil {
		s.AddHandler(handlers.InteractionCreate)
	}

	return s, nil
}
