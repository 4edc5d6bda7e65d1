package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ad/go-telegram-autoreply/internal/config"
	"github.com/ad/go-telegram-autoreply/internal/db"
	"github.com/ad/go-telegram-autoreply/internal/filestore"
	"github.com/ad/go-telegram-autoreply/internal/models"
	"github.com/ad/go-telegram-autoreply/internal/services"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
	_ "modernc.org/sqlite"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "autoreply-settings",
		Usage: "inspect and edit stored auto-reply settings while the bot is stopped",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   config.DefaultDBPath,
				Usage:   "path to the bot SQLite database",
				EnvVars: []string{"DB_PATH"},
			},
			&cli.StringFlag{
				Name:    "file",
				Usage:   "JSON settings file; takes precedence over --db",
				EnvVars: []string{"SETTINGS_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print current settings",
				Action: func(c *cli.Context) error {
					return withStore(c, func(store services.SettingsStore) error {
						settings, err := loadSettings(store)
						if err != nil {
							return err
						}
						printSettings(c.App.Writer, settings)
						return nil
					})
				},
			},
			{
				Name:      "set-cooldown",
				Usage:     "set the cooldown between auto-replies to one peer",
				ArgsUsage: "<seconds>",
				Action: func(c *cli.Context) error {
					cooldown, err := services.ParseCooldown(c.Args().First())
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					return update(c, func(s *models.Settings) { s.CooldownSeconds = cooldown })
				},
			},
			{
				Name:      "set-message",
				Usage:     "set the auto-reply text",
				ArgsUsage: "<text>",
				Action: func(c *cli.Context) error {
					text := joinArgs(c.Args().Slice())
					if text == "" {
						return cli.Exit("auto-reply text is empty", 2)
					}
					return update(c, func(s *models.Settings) { s.ReplyText = text })
				},
			},
			{
				Name:  "reset",
				Usage: "restore default settings",
				Action: func(c *cli.Context) error {
					return update(c, func(s *models.Settings) { *s = models.DefaultSettings() })
				},
			},
			{
				Name:  "replies",
				Usage: "inspect the last auto-reply remembered per peer",
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "print the remembered reply for a peer",
						ArgsUsage: "<peer-id>",
						Action: func(c *cli.Context) error {
							peerID, err := parsePeerID(c.Args().First())
							if err != nil {
								return err
							}
							return withQueue(c, func(queue *db.DBQueue) error {
								state, err := db.NewReplyStateRepository(queue).Get(c.Context, peerID)
								if errors.Is(err, sql.ErrNoRows) {
									fmt.Fprintf(c.App.Writer, "no reply remembered for %d\n", peerID)
									return nil
								}
								if err != nil {
									return fmt.Errorf("get reply state: %w", err)
								}
								printReplyState(c.App.Writer, *state)
								return nil
							})
						},
					},
					{
						Name:      "clear",
						Usage:     "forget the remembered reply so the peer is answered as new",
						ArgsUsage: "<peer-id>",
						Action: func(c *cli.Context) error {
							peerID, err := parsePeerID(c.Args().First())
							if err != nil {
								return err
							}
							return withQueue(c, func(queue *db.DBQueue) error {
								cleared, err := db.NewReplyStateRepository(queue).Clear(c.Context, peerID)
								if err != nil {
									return fmt.Errorf("clear reply state: %w", err)
								}
								if cleared {
									fmt.Fprintf(c.App.Writer, "cleared reply state for %d\n", peerID)
								} else {
									fmt.Fprintf(c.App.Writer, "no reply remembered for %d\n", peerID)
								}
								return nil
							})
						},
					},
				},
			},
		},
	}
}

func withStore(c *cli.Context, fn func(services.SettingsStore) error) error {
	if path := c.String("file"); path != "" {
		return fn(filestore.NewSettingsFile(path))
	}
	return withQueue(c, func(queue *db.DBQueue) error {
		return fn(db.NewSettingsRepository(queue))
	})
}

func withQueue(c *cli.Context, fn func(*db.DBQueue) error) error {
	database, err := sql.Open("sqlite", c.String("db")+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	queue := db.NewDBQueue(database)
	defer queue.Close()

	return fn(queue)
}

func update(c *cli.Context, mutate func(*models.Settings)) error {
	return withStore(c, func(store services.SettingsStore) error {
		settings, err := loadSettings(store)
		if err != nil {
			return err
		}
		mutate(&settings)
		if err := store.Save(settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		printSettings(c.App.Writer, settings)
		return nil
	})
}

// loadSettings mirrors the bot's startup: malformed content counts as absent.
func loadSettings(store services.SettingsStore) (models.Settings, error) {
	partial, err := store.Load()
	if err != nil {
		if errors.Is(err, models.ErrMalformedSettings) {
			log.Printf("Stored settings are malformed, using defaults: %v", err)
			return models.DefaultSettings(), nil
		}
		return models.Settings{}, err
	}
	if partial == nil {
		return models.DefaultSettings(), nil
	}
	settings, _ := partial.Complete()
	return settings, nil
}

func printSettings(w io.Writer, s models.Settings) {
	fmt.Fprintf(w, "cooldown: %d\nauto_reply_message: %s\n", s.CooldownSeconds, s.ReplyText)
}

func printReplyState(w io.Writer, s models.ReplyState) {
	fmt.Fprintf(w, "peer: %d\nbusiness_connection_id: %s\nmessage_id: %d\nsent_at: %s\n",
		s.Peer.ChatID, s.Peer.BusinessConnectionID, s.MessageID, s.SentAt.UTC().Format(time.RFC3339))
}

func parsePeerID(arg string) (int64, error) {
	peerID, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || peerID == 0 {
		return 0, cli.Exit(fmt.Sprintf("invalid peer id %q", arg), 2)
	}
	return peerID, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
