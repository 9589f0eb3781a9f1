package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/duet-cli/duet/agent"
	"github.com/duet-cli/duet/internal/config"
	"github.com/duet-cli/duet/internal/logger"
	"github.com/duet-cli/duet/llm"
	"github.com/duet-cli/duet/tools"
	"github.com/duet-cli/duet/workspace"
)

const (
	Version = "0.1.0"

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Run starts the interactive session rooted at the current directory.
func Run(cfg *config.Config) error {
	printWelcome()

	if !cfg.IsAPIKeyConfigured() {
		return promptAPIKey(cfg)
	}

	log, err := logger.NewLogger(logger.Config{
		LogDir:  cfg.Log.Dir,
		Level:   logger.ParseLevel(cfg.Log.Level),
		MaxDays: cfg.Log.MaxDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}
	ws, err := workspace.New(cwd)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	session, err := buildSession(cfg, client, ws, log)
	if err != nil {
		return err
	}

	// runREPL owns the session lifecycle: /new swaps sessions, so the
	// one alive at exit is closed there.
	return runREPL(session, cfg, client, ws, log)
}

func buildClient(cfg *config.Config) (*llm.Client, error) {
	retry := llm.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Model.MaxRetries

	switch strings.ToLower(cfg.Model.Provider) {
	case "anthropic":
		return llm.NewClient(
			llm.WithProvider("anthropic", llm.NewAnthropicAdapter(cfg.Model.APIKey)),
			llm.WithDefaultProvider("anthropic"),
			llm.WithRetryPolicy(retry),
		), nil
	case "openai":
		adapter, err := llm.NewGollmAdapter("openai", cfg.Model.APIKey,
			llm.WithGollmModel(cfg.Model.Model),
			llm.WithGollmMaxTokens(cfg.Model.MaxTokens),
			llm.WithGollmTemperature(cfg.Model.Temperature),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai adapter: %w", err)
		}
		return llm.NewClient(
			llm.WithProvider("openai", adapter),
			llm.WithDefaultProvider("openai"),
			llm.WithRetryPolicy(retry),
		), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Model.Provider)
	}
}

func buildSession(cfg *config.Config, client *llm.Client, ws *workspace.Workspace, log *logger.Logger) (*agent.Session, error) {
	registry := agent.NewRegistry()
	if err := tools.RegisterAll(registry, ws); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	executor := agent.NewExecutor(registry,
		agent.WithToolTimeout(time.Duration(cfg.Agent.ToolTimeoutSeconds)*time.Second),
		agent.WithConcurrentBatches(cfg.Agent.ConcurrentTools),
	)

	sessionCfg := agent.DefaultConfig()
	sessionCfg.Model = cfg.Model.Model
	sessionCfg.Provider = strings.ToLower(cfg.Model.Provider)
	sessionCfg.MaxToolRounds = cfg.Agent.MaxToolRounds
	sessionCfg.EnableLoopGuard = cfg.Agent.EnableLoopGuard
	sessionCfg.LoopWindow = cfg.Agent.LoopWindow
	sessionCfg.SystemPrompt = agent.BuildSystemPrompt(ws.Root(), registry.Names(), "")

	return agent.NewSession(client, registry, sessionCfg,
		agent.WithLogger(log),
		agent.WithExecutor(executor),
	), nil
}

// printWelcome prints welcome message
func printWelcome() {
	fmt.Printf("\n%sDuet v%s%s - pair programming in your terminal\n", colorCyan, Version, colorReset)
	fmt.Printf("%sType /help for help, /exit to quit%s\n\n", colorGray, colorReset)
}

// promptAPIKey prompts user to configure API Key
func promptAPIKey(cfg *config.Config) error {
	fmt.Printf("%sAPI key not configured%s\n\n", colorYellow, colorReset)

	rl, err := readline.New(fmt.Sprintf("Please enter your %s API key: ", cfg.Model.Provider))
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	apiKey, err := rl.Readline()
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	cfg.Model.APIKey = apiKey
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\n%sAPI key saved%s\n\n", colorGreen, colorReset)

	return Run(cfg)
}

func historyFilePath(cfg *config.Config) string {
	if cfg.CLI.HistoryFile == "" {
		return ""
	}
	if err := os.MkdirAll(filepath.Dir(cfg.CLI.HistoryFile), 0755); err != nil {
		return ""
	}
	return cfg.CLI.HistoryFile
}

// runREPL runs the interactive loop. An in-flight turn can be cancelled
// with Ctrl+C without losing the session; tool mutations already applied
// stay in effect.
func runREPL(session *agent.Session, cfg *config.Config, client *llm.Client, ws *workspace.Workspace, log *logger.Logger) error {
	rlConfig := &readline.Config{
		Prompt:            fmt.Sprintf("%sYou: %s", colorGreen, colorReset),
		HistoryFile:       historyFilePath(cfg),
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	}

	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	renderer := newRenderer(cfg.CLI.Color)
	startConsumer := func(s *agent.Session) func() {
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			renderer.consume(s.Events(), done)
		}()
		return func() {
			close(done)
			wg.Wait()
		}
	}
	stopConsumer := startConsumer(session)
	defer func() {
		session.Close()
		stopConsumer()
	}()

	// SIGINT while a turn is running cancels that turn only.
	turn := newTurnGuard()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if !turn.cancel() {
				fmt.Printf("\n%sNo turn in progress; type /exit to quit%s\n", colorYellow, colorReset)
			}
		}
	}()

	idleInterrupts := 0
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				idleInterrupts++
				if idleInterrupts >= 2 {
					fmt.Printf("\n%sGoodbye!%s\n", colorCyan, colorReset)
					return nil
				}
				fmt.Printf("%sPress Ctrl+C again or type /exit to quit%s\n", colorYellow, colorReset)
				continue
			}
			if err == io.EOF {
				fmt.Printf("\n%sGoodbye!%s\n", colorCyan, colorReset)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		idleInterrupts = 0
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			next, err := handleCommand(input, session, cfg, client, ws, log)
			if err != nil {
				return nil // /exit
			}
			if next != session {
				// /new closed the old session; move the event consumer over.
				stopConsumer()
				session = next
				stopConsumer = startConsumer(session)
			}
			continue
		}

		processTurn(session, turn, input, log)

		if session.State() == agent.StateFatal {
			fmt.Printf("%sSession is no longer usable; start a new one with /new%s\n", colorRed, colorReset)
		}
	}
}

func processTurn(session *agent.Session, turn *turnGuard, input string, log *logger.Logger) {
	ctx := turn.begin()
	defer turn.end()

	answer, err := session.Submit(ctx, input)
	if err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Printf("\n%sTurn cancelled%s\n\n", colorYellow, colorReset)
			return
		}
		log.Error("turn failed: %v", err)
		fmt.Printf("\n%sError: %v%s\n\n", colorRed, err, colorReset)
		return
	}

	fmt.Printf("\n%sDuet: %s%s\n\n", colorBlue, colorReset, answer)
}

// turnGuard tracks the cancel function of the turn in flight so the signal
// handler can abort it.
type turnGuard struct {
	mu         sync.Mutex
	cancelTurn context.CancelFunc
}

func newTurnGuard() *turnGuard { return &turnGuard{} }

func (g *turnGuard) begin() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	g.cancelTurn = cancel
	g.mu.Unlock()
	return ctx
}

func (g *turnGuard) end() {
	g.mu.Lock()
	if g.cancelTurn != nil {
		g.cancelTurn()
		g.cancelTurn = nil
	}
	g.mu.Unlock()
}

// cancel aborts the in-flight turn. It reports whether a turn was running.
func (g *turnGuard) cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelTurn == nil {
		return false
	}
	g.cancelTurn()
	g.cancelTurn = nil
	return true
}

// handleCommand handles built-in commands. It returns the session to use for
// subsequent turns (replaced by /new) and a non-nil error only for /exit.
func handleCommand(cmd string, session *agent.Session, cfg *config.Config, client *llm.Client, ws *workspace.Workspace, log *logger.Logger) (*agent.Session, error) {
	parts := strings.Fields(cmd)
	command := strings.ToLower(parts[0])

	switch command {
	case "/help":
		printHelp()

	case "/exit", "/quit", "/q":
		fmt.Printf("%sGoodbye!%s\n", colorCyan, colorReset)
		return session, io.EOF

	case "/config":
		fmt.Println(cfg.String())

	case "/clear":
		if err := session.Reset(); err != nil {
			fmt.Printf("%sFailed to clear session: %v%s\n", colorRed, err, colorReset)
		} else {
			fmt.Printf("%sConversation cleared%s\n", colorGreen, colorReset)
		}

	case "/new":
		next, err := buildSession(cfg, client, ws, log)
		if err != nil {
			fmt.Printf("%sFailed to create session: %v%s\n", colorRed, err, colorReset)
			return session, nil
		}
		session.Close()
		fmt.Printf("%sNew session started%s\n", colorGreen, colorReset)
		return next, nil

	case "/tools":
		fmt.Printf("%sAvailable tools:%s\n", colorYellow, colorReset)
		printTools()

	default:
		fmt.Printf("%sUnknown command: %s%s\n", colorYellow, cmd, colorReset)
		fmt.Println("Type /help for available commands")
	}

	return session, nil
}

func toolsHelpText() string {
	return strings.Join([]string{
		"  read_file   - Read file contents with optional paging",
		"  write_file  - Create or overwrite a file",
		"  edit_file   - Replace exact text within a file",
		"  list_files  - Recursively list workspace entries",
		"  search      - Regex search across workspace files",
	}, "\n")
}

func printTools() {
	fmt.Println(toolsHelpText())
}

// printHelp prints help information
func printHelp() {
	fmt.Printf(`
%sDuet Help%s

%sBuilt-in Commands:%s
  /help    - Show this help message
  /clear   - Clear the current conversation
  /new     - Start a fresh session
  /config  - Show current configuration
  /tools   - List available tools
  /exit    - Exit program

%sInput Tips:%s
  - Up/Down arrow keys browse input history
  - Ctrl+C cancels the turn in progress; the session survives
  - Ctrl+D exits

%sExamples:%s
  "Show me the files in this project"
  "Read main.go and explain the startup path"
  "Rename the helper in util.go and update its callers"

`, colorCyan, colorReset, colorYellow, colorReset, colorYellow, colorReset, colorYellow, colorReset)
}
