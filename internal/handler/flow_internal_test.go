package handler

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/generator"
)

type discardSession struct{}

func (discardSession) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	return nil
}

func TestExpiredFlowsArePruned(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fm := NewFlowManager(&generator.SequenceGenerator{})
	fm.now = func() time.Time { return now }

	twoStep := &Flow{
		ID: "two-step",
		Root: &Node{
			ID:      "start",
			Matcher: isCommand("start"),
			Handler: func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error { return nil },
			Next: []*Node{{
				ID:      "end",
				Matcher: func(*discordgo.InteractionCreate) bool { return true },
				Handler: func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error { return nil },
			}},
		},
	}
	fm.RegisterFlow(twoStep)

	start := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: "start"},
	}}

	if err := fm.Router(discardSession{}, start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(flowTTL + time.Second)
	if err := fm.Router(discardSession{}, start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fm.Active() != 1 {
		t.Errorf("expected only the fresh flow to remain, got %d", fm.Active())
	}
	if _, ok := fm.sessions["2"]; !ok {
		t.Error("expected the second flow to be active")
	}
}

func TestRegisterFlowTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()

	fm := NewFlowManager(nil)
	fm.RegisterFlow(PingFlow)
	fm.RegisterFlow(PingFlow)
}
