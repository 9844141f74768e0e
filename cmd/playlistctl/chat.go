package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/service"
)

const chatHelp = `commands: /new  /list  /select <id>  /deselect  /rename <title>  /quit`

func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the assistant from the terminal",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Playlist ID to resume",
			},
		},
		Action: r.Chat,
	}
}

// Chat runs an interactive conversation against the configured store and model.
func (r *Runner) Chat(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	orch := a.Sessions.Get(cmd.String("owner"))

	sess := orch.Snapshot()
	if id := cmd.String("playlist"); id != "" {
		if sess, err = orch.SelectPlaylist(ctx, id); err != nil {
			return fmt.Errorf("failed to select playlist: %w", err)
		}
	}
	r.printSession(sess)
	r.writePlain("%s\n", chatHelp)

	scanner := bufio.NewScanner(r.input)
	for {
		r.writePlain("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.runChatCommand(ctx, orch, line)
			if err != nil {
				r.writePlain("error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		res, err := orch.SubmitUserTurn(ctx, line)
		if err != nil {
			r.writePlain("error: %v\n", err)
			continue
		}
		r.printTurn(res.BotTurn)
	}

	return scanner.Err()
}

func (r *Runner) runChatCommand(ctx context.Context, orch *service.Orchestrator, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		sess, err := orch.NewPlaylist(ctx)
		if err != nil {
			return false, err
		}
		r.writePlain("created %s\n", sess.Playlist.ID)
	case "/list":
		playlists, err := orch.ListPlaylists(ctx)
		if err != nil {
			return false, err
		}
		r.printPlaylists(playlists)
	case "/select":
		if arg == "" {
			return false, errors.New("usage: /select <id>")
		}
		sess, err := orch.SelectPlaylist(ctx, arg)
		if err != nil {
			return false, err
		}
		r.printSession(sess)
	case "/deselect":
		sess, err := orch.SelectPlaylist(ctx, "")
		if err != nil {
			return false, err
		}
		r.printSession(sess)
	case "/rename":
		p, err := orch.RenameSelected(ctx, arg)
		if err != nil {
			return false, err
		}
		r.writePlain("renamed to %q\n", p.Title)
	default:
		r.writePlain("%s\n", chatHelp)
	}
	return false, nil
}

func (r *Runner) printSession(sess *model.Session) {
	if sess.Playlist != nil {
		r.writePlain("== %s (%s)\n", sess.Playlist.Title, sess.Playlist.ID)
	}
	for _, t := range sess.Turns {
		r.printTurn(t)
	}
}

func (r *Runner) printTurn(t model.Turn) {
	prefix := "you"
	if t.Sender == model.SenderBot {
		prefix = "bot"
	}

	if !t.IsPlaylist {
		r.writePlain("%s: %s\n", prefix, t.Text)
		return
	}

	r.writePlain("%s: %d songs\n", prefix, len(t.Songs))
	for i, s := range t.Songs {
		r.writePlain("  %2d. %s - %s\n", i+1, s.Title, s.Artist)
	}
}
