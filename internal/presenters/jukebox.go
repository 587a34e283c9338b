package presenters

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/jukebox"
)

const ComponentIDJukeboxStatus = "jukebox_status"

// StatusCustomID ties the status button of a /jukebox reply to its flow instance.
func StatusCustomID(instanceID string) string {
	return ComponentIDJukeboxStatus + ":" + instanceID
}

func ephemeral(content string, components ...discordgo.MessageComponent) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: components,
		},
	}
}

func BuildJukeboxLinkResponse(channelID, link, instanceID string) *discordgo.InteractionResponse {
	row := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label: "Open jukebox",
				Style: discordgo.LinkButton,
				URL:   link,
			},
			discordgo.Button{
				Label:    "What's playing?",
				Style:    discordgo.SecondaryButton,
				CustomID: StatusCustomID(instanceID),
			},
		},
	}

	return ephemeral(fmt.Sprintf("Jukebox for <#%s>: %s", channelID, link), row)
}

func BuildErrorResponse(message string) *discordgo.InteractionResponse {
	return ephemeral(message)
}

// BuildStatusResponse replaces the /jukebox reply with the state of the
// channel's session. joined is false when the bot has no session there.
func BuildStatusResponse(channelID string, snapshot jukebox.Snapshot, joined bool) *discordgo.InteractionResponse {
	var content string
	switch {
	case !joined:
		content = fmt.Sprintf("The jukebox hasn't joined <#%s> yet. Open it to get started.", channelID)
	case snapshot.Playing == nil:
		content = fmt.Sprintf("Nothing is playing in <#%s>.", channelID)
	default:
		content = fmt.Sprintf("Now playing in <#%s>: **%s** by %s", channelID, snapshot.Playing.Title, snapshot.Playing.Author)
		var flags []string
		if snapshot.IsPaused {
			flags = append(flags, "paused")
		}
		if snapshot.IsRepeating {
			flags = append(flags, "on repeat")
		}
		if len(flags) > 0 {
			content += " _(" + strings.Join(flags, ", ") + ")_"
		}
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	}
}
