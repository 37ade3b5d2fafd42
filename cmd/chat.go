package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpchat/internal/dependency"
	"github.com/crystaldolphin/mcpchat/internal/orchestrator"
	"github.com/crystaldolphin/mcpchat/internal/schema"
	"github.com/crystaldolphin/mcpchat/internal/shared/cmdutils"
)

const turnTimeout = 5 * time.Minute

var (
	chatMessage    string
	chatProvider   string
	chatContextKey string
	chatEvents     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a provider from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatProvider, "provider", "p", "claude", "LLM provider (claude, openai, gemini)")
	chatCmd.Flags().StringVarP(&chatContextKey, "context", "k", "", "Context key for the initial instructions")
	chatCmd.Flags().BoolVar(&chatEvents, "events", true, "Show progress events")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close(context.Background())

	if ids := container.Providers().IDs(); !slices.Contains(ids, chatProvider) {
		return fmt.Errorf("unknown provider %q (available: %s)", chatProvider, strings.Join(ids, ", "))
	}
	if err := container.ConnectTools(ctx); err != nil {
		return err
	}

	s := &chatSession{engine: container.Engine(), provider: chatProvider, contextKey: chatContextKey}
	if chatMessage != "" {
		return s.send(ctx, chatMessage)
	}
	return s.interactive(ctx)
}

// chatSession keeps the conversation history of one terminal session.
type chatSession struct {
	engine     *orchestrator.Engine
	provider   string
	contextKey string
	history    []schema.HistoryEntry
}

func (s *chatSession) send(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	var onEvent orchestrator.EventFunc
	if chatEvents {
		onEvent = func(status, details string) { cmdutils.PrintEvent(os.Stderr, status, details) }
	}
	res, err := s.engine.Process(ctx, orchestrator.TurnRequest{
		Message:    message,
		History:    s.history,
		Provider:   s.provider,
		ContextKey: s.contextKey,
		RequestID:  uuid.NewString(),
	}, onEvent)
	if err != nil {
		return err
	}

	s.history = append(s.history,
		schema.HistoryEntry{Role: string(schema.RoleUser), Content: message},
		schema.HistoryEntry{Role: string(schema.RoleAssistant), Content: res.Text},
	)
	cmdutils.PrintResponse(os.Stdout, res.Provider, res.Text)
	return nil
}

func (s *chatSession) interactive(ctx context.Context) error {
	fmt.Printf("%s Interactive mode with %s (type 'exit' or Ctrl+C to quit)\n\n", logo, s.provider)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("You: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Println("\nGoodbye!")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Println("\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		if err := s.send(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}
