package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"prolink-chat/internal/events"
	"prolink-chat/internal/services"
	"prolink-chat/pkg/logger"
	"prolink-chat/pkg/wsclient"
)

const usage = `
Prolink Chat - live event console

Usage:
  chatctl [flags]

Prints every event pushed to the user and reads commands from stdin:
  typing <userId>   send a typing indicator to userId
  stop <userId>     clear the typing indicator
  read <userId>     mark messages from userId as read

Flags:
  -url string      websocket endpoint (default "ws://localhost:8080/v1/ws")
  -token string    access token
  -secret string   signing secret; issues a token for -user instead of -token
  -user string     user id to issue a token for (default: random)
  -scope string    scopes for the issued token, e.g. "notifications:write"
`

func main() {
	url := flag.String("url", "ws://localhost:8080/v1/ws", "websocket endpoint")
	token := flag.String("token", "", "access token")
	secret := flag.String("secret", "", "signing secret used to issue a token")
	user := flag.String("user", "", "user id to issue a token for")
	scope := flag.String("scope", "", "space separated scopes for the issued token")
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if *token == "" && *secret != "" {
		userID := uuid.New()
		if *user != "" {
			parsed, err := uuid.Parse(*user)
			if err != nil {
				log.Fatalf("invalid -user: %v", err)
			}
			userID = parsed
		}
		issued, _, err := services.NewAuthService(*secret, time.Hour).IssueAccessToken(userID, "chatctl", strings.Fields(*scope)...)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		*token = issued
		log.Printf("connected as %s", userID)
	}
	if *token == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := wsclient.New(wsclient.Config{URL: *url, Token: *token, Logger: logger.New(logger.DevelopmentMode)})
	for _, eventType := range []string{
		events.TypeNewMessage,
		events.TypeMessageDelivered,
		events.TypeMessagesRead,
		events.TypeMessageReaction,
		events.TypeTypingIndicator,
		events.TypeNewNotification,
		events.TypeNewMessageThread,
		events.TypeThreadUpdated,
	} {
		client.On(eventType, printer(eventType))
	}
	client.OnState(func(state wsclient.State, attempt int) {
		log.Printf("state=%s attempt=%d", state, attempt)
		if state == wsclient.StateStopped {
			stop()
		}
	})

	if err := client.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close()

	go readCommands(client)
	<-ctx.Done()
}

func printer(eventType string) wsclient.Handler {
	return func(payload json.RawMessage) {
		fmt.Printf("%s %s %s\n", time.Now().Format(time.TimeOnly), eventType, payload)
	}
}

func readCommands(client *wsclient.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			log.Println("expected: <typing|stop|read> <userId>")
			continue
		}
		target, err := uuid.Parse(fields[1])
		if err != nil {
			log.Printf("invalid user id: %v", err)
			continue
		}
		switch fields[0] {
		case "typing":
			err = client.SendTyping(target, true)
		case "stop":
			err = client.SendTyping(target, false)
		case "read":
			err = client.SendReadMessages(target)
		default:
			log.Printf("unknown command %q", fields[0])
			continue
		}
		if err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}
