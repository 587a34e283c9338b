package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Check that the bot is alive",
	},
	{
		Name:        "jukebox",
		Description: "Get a link to the jukebox for your voice channel",
	},
}

// EstablishCommands registers Commands in guildID, or globally when guildID is empty.
func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}
