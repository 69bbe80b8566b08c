package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/agent/contract"
	"github.com/jtavares/agentic-support-rag/agent/gateway"
	"github.com/jtavares/agentic-support-rag/agent/memory"
	"github.com/jtavares/agentic-support-rag/agent/orchestrator"
	"github.com/jtavares/agentic-support-rag/agent/planner"
	"github.com/jtavares/agentic-support-rag/agent/registry"
	"github.com/jtavares/agentic-support-rag/agent/router"
	"github.com/jtavares/agentic-support-rag/agent/session"
	"github.com/jtavares/agentic-support-rag/agent/synth"
	configx "github.com/jtavares/agentic-support-rag/pkg/config"
	_ "github.com/jtavares/agentic-support-rag/pkg/logger/autoload"
	"github.com/jtavares/agentic-support-rag/pkg/mcp"
	openrouterx "github.com/jtavares/agentic-support-rag/pkg/openrouter"
)

type AppConfig struct {
	// ToolServerCommand launches the stdio tool server subprocess.
	ToolServerCommand string `envconfig:"TOOL_SERVER_COMMAND" split_words:"true" default:"./helpdeskd"`
	SessionID         string `envconfig:"SESSION_ID" split_words:"true" default:"default"`
	MaxHandoffs       int    `envconfig:"MAX_HANDOFFS" split_words:"true" default:"4"`
	// PersistSession keeps conversation history across queries on the same
	// session id.
	PersistSession bool          `envconfig:"PERSIST_SESSION" split_words:"true" default:"true"`
	ToolTimeout    time.Duration `envconfig:"TOOL_TIMEOUT" split_words:"true" default:"30s"`
}

func main() {
	// The config loader registers -env and performs the single flag.Parse,
	// so application flags must be declared before the first MustNew.
	query := flag.String("q", "", "answer a single query and exit")

	appCfg := configx.MustNew[AppConfig]("AGENT")
	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpc, err := mcp.Dial(ctx, appCfg.ToolServerCommand)
	if err != nil {
		log.Fatal().Err(err).Str("command", appCfg.ToolServerCommand).Msg("tool server start failed")
	}

	gw := gateway.New(rpc, gateway.Config{CallTimeout: appCfg.ToolTimeout})

	reg, err := registry.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("agent registry invalid")
	}

	mem := memory.NewStore()
	seedLongTermMemory(mem)

	orch, err := orchestrator.New(
		session.NewManager(session.ManagerConfig{
			EntryAgent:           reg.Entry().ID,
			PersistAcrossQueries: appCfg.PersistSession,
		}, buildSessionStore()),
		mem,
		buildPlanner(*openRouterCfg),
		router.New(reg, gw, router.Config{MaxHandoffs: appCfg.MaxHandoffs}),
		buildGenerator(ctx, *openRouterCfg),
		gw,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator wiring failed")
	}
	defer orch.Close()

	if err := orch.HealthCheck(ctx); err != nil {
		log.Fatal().Err(err).Msg("tool server health check failed")
	}
	log.Info().Str("session", appCfg.SessionID).Msg("agent ready")

	if strings.TrimSpace(*query) != "" {
		answer, err := orch.ProcessQuery(ctx, appCfg.SessionID, *query)
		if err != nil {
			log.Fatal().Err(err).Msg("query failed")
		}
		fmt.Println(answer)
		printMemoryStats(orch)
		return
	}

	runREPL(ctx, orch, appCfg.SessionID)
}

// buildSessionStore persists sessions to Upstash Redis when
// SESSION_REDIS_URL is set, otherwise keeps them in process memory.
func buildSessionStore() session.Store {
	if strings.TrimSpace(os.Getenv("SESSION_REDIS_URL")) == "" {
		return session.NewMemoryStore()
	}

	cfg := configx.MustNew[session.UpstashRedisConfig]("SESSION_REDIS")
	store, err := session.NewUpstashRedisStore(*cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("session redis store invalid")
	}
	log.Info().Msg("persisting sessions to upstash redis")
	return store
}

// buildPlanner prefers the LLM intent classifier and falls back to the
// keyword planner when no API key is configured.
func buildPlanner(cfg openrouterx.Config) contract.Planner {
	if client := openrouterx.NewClient(cfg); client != nil {
		return planner.NewLLMPlanner(client, cfg.Model, cfg.Timeout)
	}
	log.Warn().Msg("no openrouter api key, using rule planner")
	return planner.NewRulePlanner(contract.StrategyReAct)
}

// buildGenerator compiles the LLM synthesis graph when a key is present,
// otherwise answers from retrieved context alone.
func buildGenerator(ctx context.Context, cfg openrouterx.Config) contract.Generator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn().Msg("no openrouter api key, using static generator")
		return synth.StaticGenerator{}
	}

	chatModel, err := cfg.New(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("chat model unavailable, using static generator")
		return synth.StaticGenerator{}
	}

	gen, err := synth.NewLLMGenerator(ctx, chatModel, synth.Config{Timeout: cfg.Timeout})
	if err != nil {
		log.Warn().Err(err).Msg("synthesis graph unavailable, using static generator")
		return synth.StaticGenerator{}
	}
	return gen
}

// seedLongTermMemory loads the durable facts every conversation starts with.
func seedLongTermMemory(mem *memory.Store) {
	mem.AddLongTerm("company_name", "Apex Electronics Support")
	mem.AddLongTerm("support_hours", "Mon-Fri 9:00-18:00, Sat 10:00-14:00")
	mem.AddLongTerm("warranty_policy", "12 months standard warranty, extendable to 36 months within 30 days of purchase")
	mem.AddLongTerm("escalation_contact", "priority@apex-electronics.example")
}

func runREPL(ctx context.Context, orch *orchestrator.Orchestrator, sessionID string) {
	fmt.Println("Support agent ready. Type a question, 'reset' to clear the conversation, 'stats' for memory counts, 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "exit", "quit":
			printMemoryStats(orch)
			return
		case "reset":
			orch.ResetConversation(sessionID)
			fmt.Println("Conversation reset.")
			continue
		case "stats":
			printMemoryStats(orch)
			continue
		}

		answer, err := orch.ProcessQuery(ctx, sessionID, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Msg("query failed")
			continue
		}
		fmt.Println(answer)
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("stdin read failed")
	}
}

func printMemoryStats(orch *orchestrator.Orchestrator) {
	shortTerm, longTerm := orch.MemoryStats()
	fmt.Printf("Memory: %d short-term, %d long-term entries\n", shortTerm, longTerm)
}
