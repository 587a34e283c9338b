package handler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/jukebox"
	"github.com/glizzus/jukebox/internal/presenters"
)

const stateChannelID = "channelID"

// VoiceStates finds the voice channel a member is connected to.
// *discordgo.State implements it.
type VoiceStates interface {
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
}

// Sessions reports the playback state of a voice channel.
// *jukebox.Registry implements it.
type Sessions interface {
	Snapshot(channelID string) (jukebox.Snapshot, bool)
}

// JukeboxURL is the web client link for a voice channel.
func JukeboxURL(publicURL, guildID, channelID string) string {
	q := url.Values{}
	q.Set("guild", guildID)
	q.Set("channel", channelID)
	return strings.TrimRight(publicURL, "/") + "/?" + q.Encode()
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// NewJukeboxFlow answers /jukebox with a link to the caller's voice channel
// and a button showing what is playing there.
func NewJukeboxFlow(publicURL string, voiceStates VoiceStates, sessions Sessions) *Flow {
	status := &Node{
		ID: "jukebox_status",
		Matcher: func(i *discordgo.InteractionCreate) bool {
			if i.Type != discordgo.InteractionMessageComponent {
				return false
			}
			return strings.HasPrefix(i.MessageComponentData().CustomID, presenters.ComponentIDJukeboxStatus+":")
		},
		Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
			channelID, _ := ctx.State[stateChannelID].(string)
			snapshot, joined := sessions.Snapshot(channelID)
			return s.InteractionRespond(i.Interaction, presenters.BuildStatusResponse(channelID, snapshot, joined))
		},
	}

	return &Flow{
		ID: "jukebox",
		Root: &Node{
			ID:      "jukebox",
			Matcher: isCommand("jukebox"),
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
				if i.GuildID == "" {
					return &UserError{Message: "The jukebox only works in a server."}
				}

				vs, err := voiceStates.VoiceState(i.GuildID, interactionUserID(i))
				if err != nil || vs == nil || vs.ChannelID == "" {
					return &UserError{Message: "Join a voice channel first, then run /jukebox again."}
				}

				ctx.State[stateChannelID] = vs.ChannelID
				link := JukeboxURL(publicURL, i.GuildID, vs.ChannelID)
				if err := s.InteractionRespond(i.Interaction, presenters.BuildJukeboxLinkResponse(vs.ChannelID, link, ctx.InstanceID)); err != nil {
					return fmt.Errorf("failed to send jukebox link: %w", err)
				}
				return nil
			},
			Next: []*Node{status},
		},
	}
}
