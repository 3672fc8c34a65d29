// ABOUTME: Interactive chat loop for the familiar CLI
// ABOUTME: Routes bare text to the session and bang-commands to capability helpers

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/familiar/internal/config"
	"github.com/2389/familiar/internal/ollama"
	"github.com/2389/familiar/internal/session"
	"github.com/2389/familiar/internal/sysmsg"
	"github.com/2389/familiar/internal/tools"
)

func runChat(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Ollama: %s (model %s)\n", cfg.Ollama.Host, cfg.Ollama.DefaultModel)

	// A missing registry document means chatting without tools, not a
	// refusal to start.
	orch, err := openTools(cfg, logger)
	if err != nil {
		return err
	}
	if orch == nil {
		gray.Println("    ▶ Tools: none (run familiar init to configure servers)")
	}

	backend := ollama.New(cfg.Ollama.Host, logger)

	store, err := sysmsg.New("", logger)
	if err != nil {
		return fmt.Errorf("opening system message store: %w", err)
	}

	template := session.Config{
		ModelName: cfg.Ollama.DefaultModel,
		Backend:   backend,
		System:    store,
		Logger:    logger,
	}

	if orch != nil {
		template.Tools = orch
		if mem, err := orch.Memory(); err == nil {
			template.Memory = mem
		}
		if thinker, err := orch.Thinking(); err == nil {
			template.Thinker = thinker
		}

		red := color.New(color.FgRed)
		outcomes := orch.StartAll(ctx)
		for _, name := range orch.Servers() {
			out, ok := outcomes[name]
			switch {
			case !ok:
				green.Print("    ▶ ")
				fmt.Printf("%s: remote\n", name)
			case out.Err != nil:
				red.Print("    ▶ ")
				fmt.Printf("%s: %v\n", name, out.Err)
			default:
				green.Print("    ▶ ")
				fmt.Printf("%s: %s\n", name, out.Result)
			}
		}
		defer orch.StopAll(context.WithoutCancel(ctx))

		if cfg.Watchdog.Enabled {
			wd := tools.NewWatchdog(orch, cfg.Watchdog.PollInterval, logger)
			go func() { _ = wd.Run(ctx) }()
		}
	}

	sessions, err := session.NewRegistry(template)
	if err != nil {
		return err
	}
	sess := sessions.Get(localUser())

	fmt.Println()
	fmt.Println("Type a message and press Enter. !help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := chatLoop(ctx, sess, store); err != nil {
		return err
	}
	fmt.Println("\nGoodbye!")
	return nil
}

// openTools loads the registry and builds the orchestrator. A registry
// file that does not exist yet returns (nil, nil).
func openTools(cfg *config.Config, logger *slog.Logger) (*tools.Orchestrator, error) {
	reg, err := loadRegistry(cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tools.New(reg, logger), nil
}

// localUser names the session owner for this terminal.
func localUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func chatLoop(ctx context.Context, sess *session.Session, store *sysmsg.Store) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("[%s]> ", sess.ModelName())

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "!quit" || input == "!exit" {
			return nil
		}

		if strings.HasPrefix(input, "!") {
			runCommand(ctx, sess, store, input)
			fmt.Println()
			continue
		}

		reply, err := sess.ProcessMessage(ctx, input)
		if err != nil {
			fmt.Printf("[error] %v\n", err)
		} else {
			fmt.Println(reply)
		}
		fmt.Println()
	}
}

// runCommand handles one bang-command line. Argument validation lives
// here; the session only sees well-formed requests.
func runCommand(ctx context.Context, sess *session.Session, store *sysmsg.Store, input string) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "!help":
		printChatHelp()

	case "!model":
		if args == "" {
			fmt.Println("Usage: !model <name>")
			return
		}
		if err := sess.SetModel(ctx, args); err != nil {
			fmt.Printf("[error] %v\n", err)
			return
		}
		fmt.Printf("Model set to %s\n", args)

	case "!remember":
		if args == "" {
			fmt.Println("Usage: !remember <content>")
			return
		}
		id, err := sess.CreateMemory(ctx, args)
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			return
		}
		fmt.Printf("I'll remember that! Memory created with ID: %s\n", id)

	case "!think":
		if args == "" {
			fmt.Println("Usage: !think <problem>")
			return
		}
		step, err := sess.SequentialThinking(ctx, args)
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			return
		}
		gray := color.New(color.FgHiBlack)
		gray.Printf("(settled after %d thoughts)\n", step.Number)
		fmt.Println(step.Thought)

	case "!fetch":
		if args == "" {
			fmt.Println("Usage: !fetch <url>")
			return
		}
		orch := sess.Tools()
		if orch == nil {
			fmt.Println("[error] no fetch capability configured")
			return
		}
		fetch, err := orch.Fetch()
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			return
		}
		content, err := fetch.FetchURL(ctx, args, tools.DefaultMaxLength, false, 0)
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			return
		}
		fmt.Println(content)

	case "!system":
		switch args {
		case "":
			current, err := store.Get()
			if err != nil {
				fmt.Printf("[error] %v\n", err)
				return
			}
			if current == "" {
				fmt.Println("No system message set. The built-in prompt applies.")
				return
			}
			fmt.Println(current)
		case "clear":
			if err := store.Clear(); err != nil {
				fmt.Printf("[error] %v\n", err)
				return
			}
			fmt.Println("System message cleared.")
		default:
			if err := store.Set(args); err != nil {
				fmt.Printf("[error] %v\n", err)
				return
			}
			fmt.Println("System message updated successfully!")
		}

	default:
		fmt.Printf("Unknown command: %s (try !help)\n", cmd)
	}
}

func printChatHelp() {
	fmt.Println("Commands:")
	fmt.Println("  !model <name>        Change which Ollama model to use")
	fmt.Println("  !remember <content>  Store information in the AI's memory")
	fmt.Println("  !think <problem>     Reason through a problem step by step")
	fmt.Println("  !fetch <url>         Fetch a web page")
	fmt.Println("  !system <message>    Set the system message for the AI model")
	fmt.Println("  !system              Show the current system message")
	fmt.Println("  !system clear        Clear the system message")
	fmt.Println("  !help                Show this help")
	fmt.Println("  !quit                Exit the chat")
}
