package voice

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/jukebox"
)

type fakeAPI struct {
	guilds   map[string]*discordgo.Guild
	channels map[string]*discordgo.Channel
	fetchErr error

	joinConn  *discordgo.VoiceConnection
	joinErr   error
	joinBlock chan struct{}
}

func notFound() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (f *fakeAPI) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if g, ok := f.guilds[guildID]; ok {
		return g, nil
	}
	return nil, notFound()
}

func (f *fakeAPI) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if c, ok := f.channels[channelID]; ok {
		return c, nil
	}
	return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}
}

func (f *fakeAPI) ChannelVoiceJoin(_, _ string, _, _ bool) (*discordgo.VoiceConnection, error) {
	if f.joinBlock != nil {
		<-f.joinBlock
	}
	return f.joinConn, f.joinErr
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		guilds: map[string]*discordgo.Guild{"guild": {ID: "guild"}},
		channels: map[string]*discordgo.Channel{
			"voice": {ID: "voice", GuildID: "guild", Type: discordgo.ChannelTypeGuildVoice},
			"stage": {ID: "stage", GuildID: "guild", Type: discordgo.ChannelTypeGuildStageVoice},
			"text":  {ID: "text", GuildID: "guild", Type: discordgo.ChannelTypeGuildText},
			"elsewhere": {
				ID: "elsewhere", GuildID: "other", Type: discordgo.ChannelTypeGuildVoice,
			},
		},
	}
}

func TestGuildExists(t *testing.T) {
	tc := []struct {
		name     string
		guildID  string
		fetchErr error
		want     bool
		wantErr  bool
	}{
		{name: "known", guildID: "guild", want: true},
		{name: "unknown", guildID: "nope", want: false},
		{name: "api failure", guildID: "guild", fetchErr: errors.New("rate limited"), wantErr: true},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			api := newFakeAPI()
			api.fetchErr = test.fetchErr
			g := newGateway(api, nil, time.Second)

			got, err := g.GuildExists(context.Background(), test.guildID)
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != test.want {
				t.Errorf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestGuildExistsUsesStateCache(t *testing.T) {
	state := discordgo.NewState()
	if err := state.GuildAdd(&discordgo.Guild{ID: "cached"}); err != nil {
		t.Fatalf("GuildAdd returned error: %v", err)
	}
	api := newFakeAPI()
	api.fetchErr = errors.New("REST should not be called")
	g := newGateway(api, state, time.Second)

	ok, err := g.GuildExists(context.Background(), "cached")
	if err != nil || !ok {
		t.Errorf("expected cached guild to exist, got %v, %v", ok, err)
	}
}

func TestChannelExists(t *testing.T) {
	tc := []struct {
		name      string
		channelID string
		want      bool
		wantKind  *jukebox.Kind
	}{
		{name: "voice channel", channelID: "voice", want: true},
		{name: "stage channel", channelID: "stage", want: true},
		{name: "unknown channel", channelID: "nope", want: false},
		{name: "channel of another guild", channelID: "elsewhere", want: false},
		{name: "text channel", channelID: "text", wantKind: kindPtr(jukebox.KindBadRequest)},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			g := newGateway(newFakeAPI(), nil, time.Second)

			got, err := g.ChannelExists(context.Background(), "guild", test.channelID)
			if test.wantKind != nil {
				if !jukebox.IsKind(err, *test.wantKind) {
					t.Fatalf("expected error of kind %v, got %v", *test.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != test.want {
				t.Errorf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func kindPtr(k jukebox.Kind) *jukebox.Kind {
	return &k
}

func TestJoinVoiceReturnsReadyConnection(t *testing.T) {
	api := newFakeAPI()
	api.joinConn = &discordgo.VoiceConnection{Ready: true, OpusSend: make(chan []byte)}
	g := newGateway(api, nil, time.Second)

	conn, err := g.JoinVoice(context.Background(), "guild", "voice")
	if err != nil {
		t.Fatalf("JoinVoice returned error: %v", err)
	}
	if conn.OpusSink() == nil {
		t.Error("connection should expose the Opus send channel")
	}
}

func TestJoinVoiceFailure(t *testing.T) {
	api := newFakeAPI()
	api.joinErr = errors.New("voice gateway unreachable")
	g := newGateway(api, nil, time.Second)

	if _, err := g.JoinVoice(context.Background(), "guild", "voice"); !errors.Is(err, api.joinErr) {
		t.Errorf("expected join error, got %v", err)
	}
}

func TestJoinVoiceTimesOut(t *testing.T) {
	api := newFakeAPI()
	api.joinBlock = make(chan struct{})
	defer close(api.joinBlock)
	g := newGateway(api, nil, 20*time.Millisecond)

	_, err := g.JoinVoice(context.Background(), "guild", "voice")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
