// Command wren runs one chat turn against an OpenAI-compatible completion
// API, resolving web_search tool calls along the way.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wrenai/wren/agent"
	"github.com/wrenai/wren/config"
	"github.com/wrenai/wren/llm"
	"github.com/wrenai/wren/message"
	"github.com/wrenai/wren/pkg/logging"
	"github.com/wrenai/wren/pkg/telemetry"
	"github.com/wrenai/wren/search"
	"github.com/wrenai/wren/search/duckduckgo"
	searchmcp "github.com/wrenai/wren/search/mcp"
	"github.com/wrenai/wren/search/tavily"
	"github.com/wrenai/wren/session"
	"github.com/wrenai/wren/tokenizer"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	showReasoning := flag.Bool("reasoning", false, "print reasoning deltas to stderr")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *showReasoning, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "wren:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, showReasoning bool, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.WithComponent("cli")

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "wren",
		Disable:     cfg.Telemetry.Disable,
	})
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	client := llm.New(&llm.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
	})

	if len(args) > 0 {
		switch args[0] {
		case "models":
			return listModels(ctx, client)
		case "check":
			return checkConnection(ctx, client)
		}
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return fmt.Errorf("usage: wren [flags] <prompt> | wren models | wren check")
	}

	searcher, closeSearcher, err := buildSearcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSearcher()

	ag := agent.New(
		agent.WithProvider(client),
		agent.WithSearcher(searcher),
		agent.WithMaxRounds(cfg.Agent.MaxRounds),
		agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
	)

	conv := session.New()
	conv.Append(message.New(message.RoleUser, prompt))

	counter := tokenizer.New(cfg.Provider.Model)
	logger.Debug("starting turn", "prompt_tokens", conv.Tokens(counter))

	for ev := range ag.Run(ctx, conv.Messages()) {
		switch ev.Kind {
		case llm.EventContent:
			fmt.Print(ev.Text)
		case llm.EventReasoning:
			if showReasoning {
				fmt.Fprint(os.Stderr, ev.Text)
			}
		case llm.EventWebSearch:
			fmt.Fprintln(os.Stderr, "\n[searching the web...]")
		case llm.EventError:
			fmt.Println()
			return fmt.Errorf("%s", ev.Text)
		case llm.EventDone:
			fmt.Println()
		}
	}
	return ctx.Err()
}

func buildSearcher(ctx context.Context, cfg *config.Config) (search.Searcher, func(), error) {
	noop := func() {}
	switch cfg.Search.Provider {
	case "tavily":
		return tavily.New(tavily.DefaultConfig(cfg.Search.APIKey)), noop, nil
	case "duckduckgo":
		return duckduckgo.New(nil), noop, nil
	case "mcp":
		p, err := searchmcp.New(ctx, searchmcp.Config{
			Endpoint: cfg.Search.MCPEndpoint,
			Command:  cfg.Search.MCPCommand,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
}

func listModels(ctx context.Context, client *llm.Client) error {
	ids, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func checkConnection(ctx context.Context, client *llm.Client) error {
	if err := client.TestConnection(ctx); err != nil {
		return err
	}
	fmt.Println("connection ok:", client.Model())
	return nil
}
