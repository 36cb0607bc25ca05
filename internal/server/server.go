package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/ariadne/backend/internal/queue"
	mid "github.com/OFFIS-RIT/ariadne/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/ariadne/backend/internal/storage"
	"github.com/OFFIS-RIT/ariadne/backend/internal/util"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/ai"
	oai "github.com/OFFIS-RIT/ariadne/backend/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/ariadne/backend/pkg/ai/openai"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/artifact"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/loader/s3"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/logger"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/pipeline"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/progress"
	"github.com/OFFIS-RIT/ariadne/backend/pkg/query"
	storepgx "github.com/OFFIS-RIT/ariadne/backend/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewChatClient builds the chat client configured by AI_ADAPTER. The
// default is an OpenAI-compatible endpoint; "ollama" selects a local
// Ollama server.
func NewChatClient() ai.ChatClient {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel: util.GetEnv("AI_CHAT_MODEL"),
			BaseURL:   util.GetEnv("AI_CHAT_URL"),
			ApiKey:    util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel: util.GetEnv("AI_CHAT_MODEL"),
			ChatURL:   util.GetEnv("AI_CHAT_URL"),
			ChatKey:   util.GetEnv("AI_CHAT_KEY"),
		})
	}
}

// NewOrchestrator builds the pipeline orchestrator from environment
// configuration. Both the API server and the worker use the same
// construction so status reads and pipeline runs agree on paths.
func NewOrchestrator(
	documents *storepgx.DocumentDBStorage,
	tracker *progress.Tracker,
	artifacts *artifact.Store,
	extractor pipeline.TextExtractor,
) *pipeline.Orchestrator {
	command := strings.Fields(util.GetEnvString("INDEXER_COMMAND", "graphrag index"))

	return pipeline.NewOrchestrator(pipeline.NewOrchestratorParams{
		Documents: documents,
		Tracker:   tracker,
		Artifacts: artifacts,
		Extractor: extractor,
		Command:   command,
		Settings: pipeline.NewIndexerSettingsParams{
			Model:        util.GetEnv("AI_INDEXER_MODEL"),
			APIBase:      util.GetEnv("AI_CHAT_URL"),
			ChunkSize:    int(util.GetEnvNumeric("INDEXER_CHUNK_SIZE", 0)),
			ChunkOverlap: int(util.GetEnvNumeric("INDEXER_CHUNK_OVERLAP", 0)),
		},
	})
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := storepgx.RunMigrations(databaseURL, util.GetEnvString("MIGRATIONS_PATH", "migrations")); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, []string{queue.IndexQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	s3Client := storage.NewS3Client(ctx)

	documents := storepgx.NewDocumentDBStorage(storepgx.NewDocumentDBStorageParams{Conn: conn})

	tracker, err := progress.NewTracker(progress.NewTrackerParams{
		CacheDir: util.GetEnvString("PROGRESS_CACHE_DIR", "data/cache"),
	})
	if err != nil {
		logger.Fatal("Failed to create progress tracker", "err", err)
	}

	artifacts := artifact.NewStore(artifact.NewStoreParams{
		OutputDir: util.GetEnvString("INDEXER_OUTPUT_DIR", "data/output"),
	})

	fileLoader, err := s3.NewS3GraphFileLoader(ctx, s3.NewS3GraphFileLoaderParams{
		Bucket:    util.GetEnv("AWS_BUCKET"),
		Endpoint:  util.GetEnv("AWS_ENDPOINT"),
		Region:    util.GetEnv("AWS_REGION"),
		AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
		SecretKey: util.GetEnv("AWS_SECRET_KEY"),
	})
	if err != nil {
		logger.Fatal("Failed to create file loader", "err", err)
	}
	extractor := pipeline.NewLoaderExtractor(pipeline.NewLoaderExtractorParams{Source: fileLoader})

	orchestrator := NewOrchestrator(documents, tracker, artifacts, extractor)

	chatClient := NewChatClient()
	engine, err := query.NewEngine(query.NewEngineParams{
		Source: artifacts,
		Client: chatClient,
		Model:  util.GetEnv("AI_CHAT_MODEL"),
	})
	if err != nil {
		logger.Fatal("Failed to create query engine", "err", err)
	}

	masterAPIKey := util.GetEnv("MASTER_API_KEY")
	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)
	masterUserRole := util.GetEnv("MASTER_USER_ROLE")

	app := &mid.App{
		DBConn: conn,
		Queue:  ch,
		Key:    &k,
		S3:     s3Client,

		Documents:    documents,
		Tracker:      tracker,
		Artifacts:    artifacts,
		Orchestrator: orchestrator,
		Engine:       engine,

		MasterAPIKey:   masterAPIKey,
		MasterUserID:   masterUserID,
		MasterUserRole: masterUserRole,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1G"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
