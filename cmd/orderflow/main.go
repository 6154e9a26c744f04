// Command orderflow runs an interactive order-approval chat session on the
// command line. It wires the tool registry, executor, workflow engine, intent
// router and conversation store, then reads user messages from stdin.
//
// # Configuration
//
// Environment variables:
//
//	MONGO_URL          - MongoDB connection string (optional; in-memory store when unset)
//	MONGO_DB           - MongoDB database name (default: "orderflow")
//	REDIS_URL          - Redis address (optional; in-memory conversations when unset)
//	REDIS_PASSWORD     - Redis password (optional)
//	ANTHROPIC_API_KEY  - Enables the model-backed intent classifier and reply phrasing
//	ANTHROPIC_MODEL    - Claude model id (default: "claude-3-5-haiku-latest")
//	MODEL_TPM          - Tokens-per-minute budget for the model rate limiter (default: 60000)
//	USER_ID            - Acting user id (default: "u1")
//
// # Example
//
//	USER_ID=u1 go run ./cmd/orderflow
//	> show my orders
//	> why did order ORD-2024-0002 fail?
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	redisconv "github.com/orderflow-ai/orderflow/features/conversation/redis"
	"github.com/orderflow-ai/orderflow/features/model/anthropic"
	"github.com/orderflow-ai/orderflow/features/model/middleware"
	ordermemory "github.com/orderflow-ai/orderflow/features/order/memory"
	ordermongo "github.com/orderflow-ai/orderflow/features/order/mongo"
	clientsmongo "github.com/orderflow-ai/orderflow/features/order/mongo/clients/mongo"
	"github.com/orderflow-ai/orderflow/runtime/conversation"
	"github.com/orderflow-ai/orderflow/runtime/conversation/inmem"
	"github.com/orderflow-ai/orderflow/runtime/intent"
	"github.com/orderflow-ai/orderflow/runtime/model"
	"github.com/orderflow-ai/orderflow/runtime/telemetry"
	"github.com/orderflow-ai/orderflow/runtime/tool"
	"github.com/orderflow-ai/orderflow/runtime/tool/batch"
	"github.com/orderflow-ai/orderflow/runtime/tool/executor"
	"github.com/orderflow-ai/orderflow/runtime/workflow"
	"github.com/orderflow-ai/orderflow/tools"
)

func main() {
	ctx := log.Context(context.Background(), log.WithFormat(log.FormatText))
	if err := run(ctx); err != nil {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context) error {
	logger := telemetry.NewClueLogger()
	tracer := telemetry.NewClueTracer()

	store, cleanup, err := orderStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	directory := demoDirectory()
	engine, err := workflow.NewEngine(store, directory, workflow.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create workflow engine: %w", err)
	}

	registry := tool.NewRegistry()
	if err := tools.Register(registry, engine); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	exec, err := executor.New(registry, executor.WithLogger(logger), executor.WithTracer(tracer))
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	dispatcher, err := batch.New(exec, batch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	convStore, convCleanup, err := conversationStore()
	if err != nil {
		return err
	}
	defer convCleanup()

	routerOpts := []intent.RouterOption{intent.WithLogger(logger)}
	if client := modelClient(ctx); client != nil {
		classifier, err := intent.NewModelClassifier(client, intent.ModelClassifierOptions{})
		if err != nil {
			return fmt.Errorf("create model classifier: %w", err)
		}
		routerOpts = append(routerOpts, intent.WithPrimary(classifier), intent.WithSummaryClient(client))
	}
	router, err := intent.NewRouter(intent.NewPatternClassifier(), convStore, routerOpts...)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	userID := envOr("USER_ID", "u1")
	if err := seedOrders(ctx, engine, userID); err != nil {
		log.Info(ctx, log.KV{K: "msg", V: "seed skipped"}, log.KV{K: "err", V: err.Error()})
	}

	return chat(ctx, router, dispatcher, userID)
}

// chat runs the read-route-execute-reply loop until stdin closes.
func chat(ctx context.Context, router *intent.Router, dispatcher *batch.Dispatcher, userID string) error {
	conversationID := fmt.Sprintf("cli-%s-%d", userID, time.Now().Unix())
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		message := scanner.Text()
		if message == "" {
			fmt.Print("> ")
			continue
		}
		decision := router.Route(ctx, userID, conversationID, message)

		var results []*tool.Result
		if decision.Action != intent.ActionGeneralHelp {
			params := decision.Params
			if params == nil {
				params = map[string]any{}
			}
			if _, ok := params["userId"]; !ok {
				params["userId"] = userID
			}
			calls := []tool.Call{{ID: "1", Tool: decision.Action, Params: params}}
			results, _ = dispatcher.ExecuteAll(ctx, calls)
		}
		fmt.Println(router.Reply(ctx, conversationID, decision, results))
		fmt.Print("> ")
	}
	return scanner.Err()
}

func orderStore(ctx context.Context) (workflow.OrderStore, func(), error) {
	mongoURL := os.Getenv("MONGO_URL")
	if mongoURL == "" {
		return ordermemory.NewStore(), func() {}, nil
	}
	client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongo: %w", err)
	}
	store, err := ordermongo.NewStoreFromMongo(clientsmongo.Options{
		Client:   client,
		Database: envOr("MONGO_DB", "orderflow"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create order store: %w", err)
	}
	cleanup := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Errorf(ctx, err, "disconnect mongo")
		}
	}
	return store, cleanup, nil
}

func conversationStore() (conversation.Store, func(), error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		store := inmem.New(inmem.Options{CleanupInterval: time.Minute})
		return store, store.Close, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     redisURL,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	store, err := redisconv.New(redisconv.Options{Client: rdb})
	if err != nil {
		return nil, nil, fmt.Errorf("create conversation store: %w", err)
	}
	return store, func() { _ = rdb.Close() }, nil
}

// modelClient builds the rate-limited Anthropic client when an API key is
// configured, nil otherwise.
func modelClient(ctx context.Context) model.Client {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil
	}
	client, err := anthropic.NewFromAPIKey(apiKey, envOr("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"))
	if err != nil {
		log.Errorf(ctx, err, "create anthropic client")
		return nil
	}
	tpm := envFloatOr("MODEL_TPM", 60000)
	limiter := middleware.NewAdaptiveRateLimiter(tpm, tpm*2)
	return limiter.Middleware()(client)
}

// demoDirectory is the static approver directory used by the CLI demo.
func demoDirectory() workflow.Directory {
	return workflow.StaticDirectory{Users: []workflow.User{
		{ID: "mgr-eng", Role: workflow.RoleManager, Department: "engineering", MaxApprovalAmount: 20000},
		{ID: "mgr-ops", Role: workflow.RoleManager, Department: "operations", MaxApprovalAmount: 20000},
		{ID: "dir-1", Role: "director", MaxApprovalAmount: 50000},
		{ID: "vp-1", Role: "vp", MaxApprovalAmount: 500000},
	}}
}

// seedOrders creates a couple of demo orders so the chat has data to answer
// about.
func seedOrders(ctx context.Context, engine *workflow.Engine, userID string) error {
	product := workflow.Product{
		ID:   "laptop-pro",
		Name: "Laptop Pro",
		ApprovalLevels: []workflow.ApprovalLevel{
			{Level: 1, Role: workflow.RoleManager, MinAmount: 1000, TimeoutHours: 48},
			{Level: 2, Role: "director", MinAmount: 10000, TimeoutHours: 72},
		},
	}
	first, err := engine.CreateOrder(ctx, workflow.NewOrderInput{
		OrderNumber: "ORD-2024-0001",
		RequesterID: userID,
		Department:  "engineering",
		Product:     product,
		TotalAmount: 2500,
	})
	if err != nil {
		return err
	}
	if _, err := engine.Submit(ctx, first.ID, userID); err != nil {
		return err
	}
	second, err := engine.CreateOrder(ctx, workflow.NewOrderInput{
		OrderNumber: "ORD-2024-0002",
		RequesterID: userID,
		Department:  "engineering",
		Product:     product,
		TotalAmount: 12000,
	})
	if err != nil {
		return err
	}
	if _, err := engine.Submit(ctx, second.ID, userID); err != nil {
		return err
	}
	if _, err := engine.Reject(ctx, second.ID, "mgr-eng", "budget exceeded", "over Q3 hardware budget"); err != nil {
		return err
	}
	return nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envFloatOr(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
