// Package main implements the tg CLI tool.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/amonks/taskgraph/internal/app"
	"github.com/amonks/taskgraph/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "tg",
	Short:        "taskgraph - dependency-aware task scheduling",
	SilenceUsage: true,
}

var (
	rootActor   string
	rootDataDir string
	rootBackend string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootActor, "actor", "", "Acting user (default $TG_ACTOR, then user.name, then $USER)")
	rootCmd.PersistentFlags().StringVar(&rootDataDir, "data-dir", "", "Data directory (default store.dir or ~/.local/share/taskgraph)")
	rootCmd.PersistentFlags().StringVar(&rootBackend, "backend", "", "Store backend (jsonl, sqlite)")
}

// session is an opened data directory plus the resolved actor.
type session struct {
	*app.App
	cfg   *config.Config
	actor string
}

// openSession loads configuration from the working directory, applies the
// global flags and opens the store.
func openSession() (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}

	dataDir := strings.TrimSpace(rootDataDir)
	if dataDir == "" {
		dataDir, err = cfg.DataDir()
		if err != nil {
			return nil, err
		}
	}
	backend := strings.TrimSpace(rootBackend)
	if backend == "" {
		backend = cfg.Store.Backend
	}
	actor := strings.TrimSpace(rootActor)
	if actor == "" {
		actor = cfg.Actor()
	}

	opened, err := app.Open(app.Options{
		Backend: backend,
		DataDir: dataDir,
		Logger:  log.New(os.Stderr, "tg: ", log.LstdFlags),
	})
	if err != nil {
		return nil, err
	}
	return &session{App: opened, cfg: cfg, actor: actor}, nil
}

// requireActor returns the acting user, or an error when none is set.
func (s *session) requireActor() (string, error) {
	if s.actor == "" {
		return "", fmt.Errorf("no actor: pass --actor or set %s", config.ActorEnv)
	}
	return s.actor, nil
}

// withSession opens a session for the duration of fn.
func withSession(fn func(s *session) error) (err error) {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}
