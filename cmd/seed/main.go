package main

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/services"
	stdErrors "errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type seededUser struct {
	Username string
	UserID   string
	Token    services.Token
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
	}
	os.Exit(code)
}

// run creates (or logs in) the users, opens a room for them and prints
// their tokens with the WebSocket URL to use.
func run() (int, error) {
	caption := flag.String("room", "general", "Caption of the room to create")
	usernames := flag.String("users", "alice,bob", "Comma separated usernames")
	password := flag.String("password", "ChangeMe123456!", "Password shared by every seeded user")
	flag.Parse()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	userRepository := repositories.NewUserRepository(db)
	roomRepository := repositories.NewRoomRepository(db)
	participantRepository := repositories.NewParticipantRepository(db)
	authService := services.NewAuthService(userRepository,
		auth.NewTokenManager(config.JWTSecret, config.JWTIssuer), config.AuthTokenDuration)

	// Hashing is slow: users are registered concurrently
	var mu sync.Mutex
	var seeded []seededUser
	var g errgroup.Group
	for _, username := range strings.Split(*usernames, ",") {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		g.Go(func() error {
			token, err := authService.Register(username, *password)
			if stdErrors.Is(err, errors.ErrUserAlreadyExists) {
				log.Info("User already exists, logging in", "username", username)
				token, err = authService.Login(username, *password)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", username, err)
			}
			user, err := userRepository.GetUserByUsername(username)
			if err != nil {
				return err
			}
			mu.Lock()
			seeded = append(seeded, seededUser{Username: username, UserID: user.ID, Token: token})
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return exitRuntime, err
	}

	room, err := roomRepository.CreateRoom(*caption)
	if err != nil {
		return exitRuntime, fmt.Errorf("room creation failed: %w", err)
	}
	for _, user := range seeded {
		if _, _, err = participantRepository.AddParticipant(room.ID, user.UserID); err != nil {
			return exitRuntime, fmt.Errorf("participant %s: %w", user.Username, err)
		}
	}
	log.Info("Room created", "room", room.ID, "caption", room.Caption, "participants", len(seeded))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "User ID", "WebSocket URL"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, user := range seeded {
		url := fmt.Sprintf("ws://localhost:%d/chat/ws/%s?token=%s", config.Port, room.ID, user.Token)
		table.Append([]string{user.Username, user.UserID, url})
	}
	table.Render()
	return exitOK, nil
}
