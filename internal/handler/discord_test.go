package handler_test

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/jukebox/internal/generator"
	"github.com/glizzus/jukebox/internal/handler"
	"github.com/glizzus/jukebox/internal/jukebox"
	"github.com/glizzus/jukebox/internal/presenters"
)

type mockSession struct {
	Responses []*discordgo.InteractionResponse
}

func (m *mockSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	m.Responses = append(m.Responses, resp)
	return nil
}

var _ handler.DiscordSession = (*mockSession)(nil)

type fakeVoiceStates map[string]string

func (f fakeVoiceStates) VoiceState(_, userID string) (*discordgo.VoiceState, error) {
	channelID, ok := f[userID]
	if !ok {
		return nil, discordgo.ErrStateNotFound
	}
	return &discordgo.VoiceState{UserID: userID, ChannelID: channelID}, nil
}

type fakeSessions map[string]jukebox.Snapshot

func (f fakeSessions) Snapshot(channelID string) (jukebox.Snapshot, bool) {
	s, ok := f[channelID]
	return s, ok
}

func command(name, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "guild",
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
			Data:    discordgo.ApplicationCommandInteractionData{Name: name},
		},
	}
}

func button(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionMessageComponent,
			GuildID: "guild",
			Data:    discordgo.MessageComponentInteractionData{CustomID: customID},
		},
	}
}

func newHandler(sessions fakeSessions) func(handler.DiscordSession, *discordgo.InteractionCreate) {
	return handler.NewInteractionHandler(
		"https://jukebox.example.com",
		fakeVoiceStates{"listener": "voice-1"},
		sessions,
		&generator.SequenceGenerator{Prefix: "flow-"},
	)
}

func TestInteractionCreatePing(t *testing.T) {
	session := &mockSession{}

	newHandler(nil)(session, command("ping", "anyone"))

	expected := []*discordgo.InteractionResponse{{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Pong!",
		},
	}}
	if diff := cmp.Diff(expected, session.Responses); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
}

func TestInteractionCreateJukebox(t *testing.T) {
	session := &mockSession{}

	newHandler(nil)(session, command("jukebox", "listener"))

	link := "https://jukebox.example.com/?channel=voice-1&guild=guild"
	expected := []*discordgo.InteractionResponse{presenters.BuildJukeboxLinkResponse("voice-1", link, "flow-1")}
	if diff := cmp.Diff(expected, session.Responses); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
}

func TestInteractionCreateJukeboxOutsideVoice(t *testing.T) {
	session := &mockSession{}

	newHandler(nil)(session, command("jukebox", "lurker"))

	expected := []*discordgo.InteractionResponse{
		presenters.BuildErrorResponse("Join a voice channel first, then run /jukebox again."),
	}
	if diff := cmp.Diff(expected, session.Responses); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
}

func TestJukeboxStatusButton(t *testing.T) {
	playing := jukebox.Snapshot{ID: "voice-1", Playing: &jukebox.Track{ID: "v1", Title: "Song", Author: "Band"}}

	tc := []struct {
		name     string
		sessions fakeSessions
		want     *discordgo.InteractionResponse
	}{
		{
			name:     "session exists",
			sessions: fakeSessions{"voice-1": playing},
			want:     presenters.BuildStatusResponse("voice-1", playing, true),
		},
		{
			name:     "no session",
			sessions: fakeSessions{},
			want:     presenters.BuildStatusResponse("voice-1", jukebox.Snapshot{}, false),
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			fm := handler.NewFlowManager(&generator.SequenceGenerator{Prefix: "flow-"})
			fm.RegisterFlow(handler.NewJukeboxFlow("https://jukebox.example.com", fakeVoiceStates{"listener": "voice-1"}, test.sessions))
			session := &mockSession{}

			if err := fm.Router(session, command("jukebox", "listener")); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fm.Active() != 1 {
				t.Fatalf("expected the flow to wait for the button, %d active", fm.Active())
			}

			if err := fm.Router(session, button(presenters.StatusCustomID("flow-1"))); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(test.want, session.Responses[len(session.Responses)-1]); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
			if fm.Active() != 0 {
				t.Errorf("expected the flow to finish, %d active", fm.Active())
			}
		})
	}
}

func TestFailedFlowIsNotKept(t *testing.T) {
	fm := handler.NewFlowManager(nil)
	fm.RegisterFlow(handler.NewJukeboxFlow("https://jukebox.example.com", fakeVoiceStates{}, fakeSessions{}))

	err := fm.Router(&mockSession{}, command("jukebox", "lurker"))

	var userErr *handler.UserError
	if !errors.As(err, &userErr) {
		t.Fatalf("expected a user error, got %v", err)
	}
	if fm.Active() != 0 {
		t.Errorf("expected no active flows, got %d", fm.Active())
	}
}

func TestUnknownInteractionsAreIgnored(t *testing.T) {
	session := &mockSession{}
	h := newHandler(nil)

	h(session, command("queue", "anyone"))
	h(session, button("jukebox_status:expired"))

	if len(session.Responses) != 0 {
		t.Errorf("expected no responses, got %d", len(session.Responses))
	}
}

func TestInstanceIDFromCustomID(t *testing.T) {
	tc := map[string]string{
		"jukebox_status:flow-1": "flow-1",
		"jukebox_status:a:b":    "a:b",
		"jukebox_status":        "",
		"":                      "",
	}
	for customID, want := range tc {
		if got := handler.InstanceIDFromCustomID(customID); got != want {
			t.Errorf("InstanceIDFromCustomID(%q) = %q, want %q", customID, got, want)
		}
	}
}

func TestJukeboxURL(t *testing.T) {
	got := handler.JukeboxURL("https://jukebox.example.com/", "g 1", "c&2")
	want := "https://jukebox.example.com/?channel=c%262&guild=g+1"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
