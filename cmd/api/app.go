package api

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"advisor-backend/internal/agent"
	"advisor-backend/internal/agent/intent"
	"advisor-backend/internal/agent/tools"
	authdomain "advisor-backend/internal/auth/domain"
	authRepo "advisor-backend/internal/auth/repository"
	authUsecase "advisor-backend/internal/auth/usecase"
	chatdomain "advisor-backend/internal/chat/domain"
	chatRepo "advisor-backend/internal/chat/repository"
	chatUsecase "advisor-backend/internal/chat/usecase"
	"advisor-backend/internal/connector"
	knowledgedomain "advisor-backend/internal/knowledge/domain"
	knowledgeRepo "advisor-backend/internal/knowledge/repository"
	knowledge "advisor-backend/internal/knowledge/usecase"
	"advisor-backend/internal/notification"
	taskdomain "advisor-backend/internal/task/domain"
	taskRepo "advisor-backend/internal/task/repository"
	"advisor-backend/internal/task/scheduler"
	taskUsecase "advisor-backend/internal/task/usecase"
	"advisor-backend/pkg/ai"
	"advisor-backend/pkg/chroma"
	"advisor-backend/pkg/config"
	"advisor-backend/pkg/database"
	"advisor-backend/pkg/embedding"
	"advisor-backend/pkg/errs"
	"advisor-backend/pkg/fcm"
	"advisor-backend/pkg/hubspot"
	"advisor-backend/pkg/workspace"

	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const (
	emailCollection       = "email_embeddings"
	contactCollection     = "contact_embeddings"
	taskReminderInterval  = time.Minute
	defaultPubSubTopic    = "gmail-updates"
	defaultIntentLocation = "UTC"
)

// App holds every service the commands share.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Users     authRepo.UserRepository
	Auth      authUsecase.AuthUsecase
	Connector *connector.Connector
	Retrieval *knowledge.RetrievalEngine
	Sync      *knowledge.SyncService
	Registry  *tools.Registry
	Agent     *agent.Agent
	Chat      chatUsecase.ChatUsecase
	Tasks     taskUsecase.TaskUsecase
	Settings  *RuntimeSettings

	taskRepo      taskRepo.TaskRepository
	pusher        *notification.Pusher
	syncScheduler *knowledge.SyncScheduler
	taskScheduler *scheduler.TaskReminderScheduler
	notifications *notification.Service
}

// Migrate creates the schema and pins the vector columns to the configured size.
func Migrate(db *gorm.DB, dims int) error {
	if err := db.AutoMigrate(
		&authdomain.User{}, &authdomain.RefreshToken{}, &authdomain.FCMToken{},
		&knowledgedomain.EmailEmbedding{}, &knowledgedomain.ContactEmbedding{}, &knowledgedomain.SyncHistory{},
		&chatdomain.Conversation{}, &chatdomain.Message{},
		&taskdomain.Task{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return database.SetVectorDimensions(db, dims, knowledgedomain.EmbeddingTables...)
}

// NewApp connects to the database and builds every service. Nothing is started.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg.EmbeddingDimensions); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db}

	// Repositories
	a.Users = authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	a.taskRepo = taskRepo.NewGormTaskRepository(db)

	// Provider clients
	google := workspace.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	hs := hubspot.NewClient(cfg.HubspotClientID, cfg.HubspotClientSecret, cfg.HubspotRedirectURI)
	oauthConfigs := map[authdomain.Provider]*oauth2.Config{}
	if cfg.GoogleClientID != "" {
		oauthConfigs[authdomain.ProviderGoogle] = google.OAuthConfig()
	}
	if cfg.HubspotClientID != "" {
		oauthConfigs[authdomain.ProviderHubspot] = hs.OAuthConfig()
	}

	a.Auth = authUsecase.NewAuthUsecase(a.Users, fcmTokenRepo, cfg, oauthConfigs)
	a.Connector = connector.New(a.Users, a.Auth, google, hs)

	// Knowledge base
	embedder, err := embedding.NewProvider(embedding.Config{
		Provider:   embedding.ProviderType(cfg.EmbeddingProvider),
		Model:      cfg.EmbeddingModel,
		BaseURL:    cfg.EmbeddingBaseURL,
		APIKey:     cfg.EmbeddingAPIKey,
		Dimensions: cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, err
	}
	store, err := newVectorStore(ctx, cfg, db, embedder)
	if err != nil {
		return nil, err
	}

	a.Retrieval = knowledge.NewRetrievalEngine(embedder, store, knowledge.RetrievalOptions{
		EmailLimit:    cfg.RetrievalEmailLimit,
		ContactLimit:  cfg.RetrievalContactLimit,
		MinSimilarity: cfg.RetrievalMinSimilarity,
	})
	a.Sync = knowledge.NewSyncService(embedder, store, knowledgeRepo.NewSyncHistoryRepository(db), knowledge.SyncConfig{
		Workers:   cfg.SyncWorkers,
		QueueSize: cfg.SyncQueueSize,
		BatchSize: cfg.SyncBatchSize,
		MaxEmails: cfg.SyncMaxEmails,
	})
	a.Sync.SetEmailSource(a.Connector)
	a.Sync.SetContactSource(a.Connector)
	a.syncScheduler = knowledge.NewSyncScheduler(a.Users, a.Sync, cfg.SyncInterval)

	// Push notifications are optional
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			a.pusher = notification.NewPusher(fcmTokenRepo, fcmClient)
			a.Sync.SetNotifier(a.pusher)
		}
	} else {
		log.Printf("[DEBUG] No Firebase credentials configured, FCM disabled")
	}
	var notifier scheduler.UserNotifier
	if a.pusher != nil {
		notifier = a.pusher
	}
	a.taskScheduler = scheduler.NewTaskReminderScheduler(a.taskRepo, notifier, taskReminderInterval)

	// Agent
	a.Settings = NewRuntimeSettings(cfg.LLMBaseURL, cfg.LLMModel, cfg.RetrievalMinSimilarity)
	a.Settings.SetRetrieval(a.Retrieval)
	model, err := newChatModel(cfg, a.Settings)
	if err != nil {
		log.Printf("Warning: Failed to initialize chat model: %v", err)
	} else {
		log.Printf("Chat model initialized with provider: %s", cfg.LLMProvider)
	}

	a.Registry = tools.NewRegistry(tools.Backends{
		Knowledge: a.Retrieval,
		Mailer:    a.Connector,
		Calendar:  a.Connector,
		CRM:       a.Connector,
	})
	a.Agent = agent.New(model, a.Registry, intent.NewParser(time.Now, intentLocation(cfg.IntentTimezone)), a.Retrieval, cfg.AgentMaxIterations)

	a.Chat = chatUsecase.NewChatUsecase(chatRepo.NewChatRepository(db), a.Agent)
	a.Tasks = taskUsecase.NewTaskUsecase(a.taskRepo)

	a.Auth.AddAccountCleaner("conversations", a.Chat.DeleteByUser)
	a.Auth.AddAccountCleaner("tasks", a.Tasks.DeleteByUser)
	a.Auth.AddAccountCleaner("knowledge base", a.Sync.DeleteByUser)
	a.Auth.SetConnectCallback(a.onConnect)

	return a, nil
}

// newVectorStore picks pgvector or Chroma Cloud. Chroma embeds through its own
// embedding function, so it only pairs with the gemini provider.
func newVectorStore(ctx context.Context, cfg *config.Config, db *gorm.DB, embedder embedding.Provider) (knowledgeRepo.VectorStore, error) {
	switch cfg.VectorBackend {
	case "", "pgvector":
		return knowledgeRepo.NewGormVectorStore(db, cfg.EmbeddingDimensions), nil

	case "chroma":
		gp, ok := embedder.(*embedding.GeminiProvider)
		if !ok {
			return nil, errs.Configuration("the chroma vector backend requires EMBEDDING_PROVIDER=gemini")
		}
		client, err := chroma.NewCloudClient(chroma.Config{
			APIKey:   cfg.ChromaAPIKey,
			Tenant:   cfg.ChromaTenant,
			Database: cfg.ChromaDatabase,
		})
		if err != nil {
			return nil, err
		}
		emails, err := chroma.OpenCollection(ctx, client, emailCollection, gp.EmbeddingFunction())
		if err != nil {
			return nil, err
		}
		contacts, err := chroma.OpenCollection(ctx, client, contactCollection, gp.EmbeddingFunction())
		if err != nil {
			return nil, err
		}
		return knowledgeRepo.NewChromaVectorStore(emails, contacts, cfg.EmbeddingDimensions), nil

	default:
		return nil, errs.Configuration("unknown vector backend %q", cfg.VectorBackend)
	}
}

// newChatModel reads the Ollama endpoint from the runtime settings so it can change without a restart.
func newChatModel(cfg *config.Config, settings *RuntimeSettings) (ai.ChatModel, error) {
	if ai.ProviderType(cfg.LLMProvider) == ai.ProviderOllama {
		return ai.NewOllamaChatWithGetters(settings.OllamaBaseURL, settings.OllamaModel), nil
	}
	return ai.NewChatModel(ai.Config{
		Provider: ai.ProviderType(cfg.LLMProvider),
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
	})
}

func intentLocation(name string) *time.Location {
	if name == "" {
		name = defaultIntentLocation
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Warning: unknown INTENT_TIMEZONE %q, using UTC", name)
		return time.UTC
	}
	return loc
}

// gmailTopic returns the full Pub/Sub resource name Gmail watch expects.
func (a *App) gmailTopic() string {
	if a.Config.GoogleProjectID == "" {
		return ""
	}
	topic := a.Config.GooglePubSubTopic
	if topic == "" {
		topic = defaultPubSubTopic
	}
	if strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return fmt.Sprintf("projects/%s/topics/%s", a.Config.GoogleProjectID, topic)
}

// onConnect seeds the knowledge base for a newly connected provider.
func (a *App) onConnect(userID string, p authdomain.Provider) {
	switch p {
	case authdomain.ProviderGoogle:
		a.Sync.Enqueue(knowledge.SyncJob{UserID: userID, Kind: knowledgedomain.KindEmails})
		if topic := a.gmailTopic(); topic != "" {
			if err := a.Connector.Watch(context.Background(), userID, topic); err != nil {
				log.Printf("[Gmail] Failed to watch mailbox for user %s: %v", userID, err)
			}
		}
	case authdomain.ProviderHubspot:
		a.Sync.Enqueue(knowledge.SyncJob{UserID: userID, Kind: knowledgedomain.KindContacts})
	}
}

// StartBackground starts the sync workers, schedulers and the Pub/Sub listener.
func (a *App) StartBackground(ctx context.Context) {
	a.Sync.Start()
	a.syncScheduler.Start()
	a.taskScheduler.Start()

	if a.Config.GoogleProjectID == "" {
		log.Printf("[WARN] GoogleProjectID not configured, notification service disabled")
		return
	}
	// Extract short topic name from full resource name if necessary
	topicName := a.Config.GooglePubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}
	if topicName == "" {
		topicName = defaultPubSubTopic
	}

	svc, err := notification.NewService(ctx, a.Config.GoogleProjectID, topicName, a.Config.GoogleCredentials, a.Users, a.Sync)
	if err != nil {
		log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		return
	}
	a.notifications = svc
	go svc.Start(ctx)
}

// Close stops background work and releases the database.
func (a *App) Close() {
	a.syncScheduler.Stop()
	a.taskScheduler.Stop()
	a.Sync.Stop()
	if a.notifications != nil {
		if err := a.notifications.Close(); err != nil {
			log.Printf("[PubSub] Close failed: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
