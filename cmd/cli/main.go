package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"

	"github.com/glizzus/jukebox/internal/jukebox"
)

const replyTimeout = 30 * time.Second

var channelFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "guild-id",
		Usage:    "ID of the guild the voice channel belongs to",
		Required: true,
	},
	&cli.StringFlag{
		Name:     "channel-id",
		Usage:    "ID of the voice channel",
		Required: true,
	},
}

func withChannelFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, channelFlags...)
}

// message is a jukebox.Message as it arrives over the wire.
type message struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func viewerURL(c *cli.Context) (string, error) {
	u, err := url.Parse(c.String("server"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") +
		"/guild/" + url.PathEscape(c.String("guild-id")) +
		"/channel/" + url.PathEscape(c.String("channel-id"))
	return u.String(), nil
}

func connect(c *cli.Context) (*websocket.Conn, error) {
	target, err := viewerURL(c)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(c.Context, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return conn, nil
}

func readMessage(conn *websocket.Conn) (message, error) {
	var msg message
	if err := conn.SetReadDeadline(time.Now().Add(replyTimeout)); err != nil {
		return msg, err
	}
	err := conn.ReadJSON(&msg)
	return msg, err
}

func printMessage(msg message) {
	if msg.Status != http.StatusOK {
		var body jukebox.ErrorBody
		if err := json.Unmarshal(msg.Body, &body); err == nil {
			log.Printf("Error %d: %s %s", body.Status, body.Title, body.Detail)
			return
		}
	}

	var snapshot jukebox.Snapshot
	if err := json.Unmarshal(msg.Body, &snapshot); err != nil {
		log.Printf("Unreadable message (%d): %s", msg.Status, msg.Body)
		return
	}
	if snapshot.Playing == nil {
		log.Printf("Nothing is playing in %s", snapshot.ID)
		return
	}
	log.Printf("Playing %q by %s (%s) paused=%t repeating=%t",
		snapshot.Playing.Title, snapshot.Playing.Author, snapshot.Playing.ID,
		snapshot.IsPaused, snapshot.IsRepeating)
}

// send joins the channel, sends cmd and prints the reply to it.
func send(c *cli.Context, cmd jukebox.Command) error {
	conn, err := connect(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer conn.Close()

	joined, err := readMessage(conn)
	if err != nil {
		return cli.Exit("Failed to join channel: "+err.Error(), 1)
	}
	if joined.Status != http.StatusOK {
		printMessage(joined)
		return cli.Exit("Failed to join channel", 1)
	}

	if err := conn.WriteJSON(cmd); err != nil {
		return cli.Exit("Failed to send command: "+err.Error(), 1)
	}

	reply, err := readMessage(conn)
	if err != nil {
		return cli.Exit("No reply to command: "+err.Error(), 1)
	}
	printMessage(reply)

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if reply.Status != http.StatusOK {
		return cli.Exit("Command rejected", 1)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:        "jukebox-cli",
		Description: "A development CLI tool for testing the jukebox without the web client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Base URL of the jukebox server",
				Value:   "http://localhost:3000",
				EnvVars: []string{"JUKEBOX_SERVER"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search for videos",
				ArgsUsage: "<query>",
				Action: func(c *cli.Context) error {
					query := strings.Join(c.Args().Slice(), " ")
					if strings.TrimSpace(query) == "" {
						return cli.Exit("Please provide a search query", 1)
					}

					endpoint := strings.TrimSuffix(c.String("server"), "/") + "/videos?" + url.Values{"search": {query}}.Encode()
					req, err := http.NewRequestWithContext(c.Context, http.MethodGet, endpoint, nil)
					if err != nil {
						return cli.Exit("Invalid request: "+err.Error(), 1)
					}
					resp, err := http.DefaultClient.Do(req)
					if err != nil {
						return cli.Exit("Failed to search: "+err.Error(), 1)
					}
					defer resp.Body.Close()

					if resp.StatusCode != http.StatusOK {
						var body jukebox.ErrorBody
						_ = json.NewDecoder(resp.Body).Decode(&body)
						return cli.Exit(fmt.Sprintf("Search failed: %s %s", resp.Status, body.Detail), 1)
					}

					var tracks []jukebox.Track
					if err := json.NewDecoder(resp.Body).Decode(&tracks); err != nil {
						return cli.Exit("Unreadable search results: "+err.Error(), 1)
					}
					if len(tracks) == 0 {
						log.Println("No videos found.")
						return nil
					}
					for _, t := range tracks {
						log.Printf("%s  %s (%s)", t.ID, t.Title, t.Author)
					}
					return nil
				},
			},
			{
				Name:  "watch",
				Usage: "Print every update of a channel's session until interrupted",
				Flags: withChannelFlags(),
				Action: func(c *cli.Context) error {
					conn, err := connect(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					defer conn.Close()

					go func() {
						<-c.Context.Done()
						conn.Close()
					}()

					for {
						var msg message
						if err := conn.ReadJSON(&msg); err != nil {
							if c.Context.Err() != nil {
								return nil
							}
							return cli.Exit("Connection lost: "+err.Error(), 1)
						}
						printMessage(msg)
					}
				},
			},
			{
				Name:  "play",
				Usage: "Play a video in a voice channel",
				Flags: withChannelFlags(&cli.StringFlag{
					Name:     "video-id",
					Usage:    "ID of the YouTube video to play",
					Required: true,
				}),
				Action: func(c *cli.Context) error {
					return send(c, jukebox.Command{Type: jukebox.CommandPlay, VideoID: c.String("video-id")})
				},
			},
			{
				Name:  "pause",
				Usage: "Toggle pause in a voice channel",
				Flags: withChannelFlags(),
				Action: func(c *cli.Context) error {
					return send(c, jukebox.Command{Type: jukebox.CommandPause})
				},
			},
			{
				Name:  "repeat",
				Usage: "Toggle repeat in a voice channel",
				Flags: withChannelFlags(),
				Action: func(c *cli.Context) error {
					return send(c, jukebox.Command{Type: jukebox.CommandRepeat})
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
