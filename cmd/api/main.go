// Package main runs the collaboration API, either as an API Gateway Lambda or as a
// standalone HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"github.com/jarrod-lowe/jmap-service-libs/awsinit"
	"github.com/jarrod-lowe/jmap-service-libs/logging"

	"github.com/jarrod-lowe/collab-service/internal/access"
	"github.com/jarrod-lowe/collab-service/internal/board"
	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/config"
	"github.com/jarrod-lowe/collab-service/internal/dm"
	"github.com/jarrod-lowe/collab-service/internal/eventqueue"
	"github.com/jarrod-lowe/collab-service/internal/friend"
	"github.com/jarrod-lowe/collab-service/internal/httpapi"
	"github.com/jarrod-lowe/collab-service/internal/identity"
	"github.com/jarrod-lowe/collab-service/internal/media"
	"github.com/jarrod-lowe/collab-service/internal/mediadelete"
	"github.com/jarrod-lowe/collab-service/internal/message"
	"github.com/jarrod-lowe/collab-service/internal/notify"
	"github.com/jarrod-lowe/collab-service/internal/portfolio"
	"github.com/jarrod-lowe/collab-service/internal/profile"
	"github.com/jarrod-lowe/collab-service/internal/social"
	"github.com/jarrod-lowe/collab-service/internal/task"
	"github.com/jarrod-lowe/collab-service/internal/voice"
	"github.com/jarrod-lowe/collab-service/internal/workspace"
)

// shutdownTimeout bounds graceful shutdown of the standalone server.
const shutdownTimeout = 15 * time.Second

// functionName names the cold start span.
const functionName = "collab-api"

var logger = logging.New()

func fatal(msg string, err error) {
	logger.Error("FATAL: "+msg, slog.String("error", err.Error()))
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fatal("Invalid configuration", err)
	}
	slog.SetDefault(logger)

	result, err := awsinit.Init(ctx, awsinit.WithHTTPHandler(functionName))
	if err != nil {
		fatal("Failed to initialize", err)
	}
	if result.Config.Region == "" {
		result.Config.Region = cfg.AWSRegion
	}

	router, err := buildRouter(cfg, result.Config, logger)
	result.Cleanup()
	if err != nil {
		fatal("Failed to build router", err)
	}

	if cfg.IsLambda() {
		result.Start(chiadapter.NewV2(router).ProxyWithContextV2)
		return
	}

	if err := serve(cfg.ServerAddress, router, logger); err != nil {
		fatal("Server failed", err)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := result.TracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", slog.String("error", err.Error()))
	}
}

// buildRouter wires every repository and service into the API router.
func buildRouter(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*chi.Mux, error) {
	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
	table := cfg.TableName

	var queue eventqueue.Queue[eventqueue.Event]
	if cfg.EventQueueBackend == config.QueueBackendMemory {
		queue = eventqueue.NewMemoryQueue[eventqueue.Event]()
	} else {
		queue = eventqueue.NewDynamoQueue[eventqueue.Event](dynamoClient, table, cfg.EventTTL)
	}

	workspaces := workspace.NewDynamoDBRepository(dynamoClient, table)
	profiles := profile.NewRepository(dynamoClient, table)

	deps := httpapi.Deps{
		Auth:        identity.NewCognito(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.CognitoClientID, cfg.CognitoClientSecret),
		Verifier:    identity.NewVerifier(cfg.AWSRegion, cfg.CognitoUserPoolID, cfg.CognitoClientID),
		Workspaces:  workspaces,
		Guard:       access.NewGuard(workspaces),
		Channels:    channel.NewRepository(dynamoClient, table),
		Messages:    message.NewRepository(dynamoClient, table),
		Tasks:       task.NewRepository(dynamoClient, table),
		Board:       board.NewRepository(dynamoClient, table),
		Profiles:    profiles,
		Friends:     friend.NewService(friend.NewRepository(dynamoClient, table), profiles),
		Threads:     dm.NewRepository(dynamoClient, table),
		Posts:       social.NewRepository(dynamoClient, table),
		Projects:    portfolio.NewRepository(dynamoClient, table),
		Voice:       voice.NewService(voice.NewPresence(dynamoClient, table), queue, logger),
		Notifier:    notify.New(queue, logger),
		Logger:      logger,
		CORSOrigins: cfg.CORSAllowedOrigins,
	}

	if cfg.MediaEnabled() {
		s3Client := s3.NewFromConfig(awsCfg)
		store := media.NewStore(s3.NewPresignClient(s3Client), s3Client, cfg.MediaBucket, cfg.AWSRegion, cfg.MediaBaseURL)
		deps.Uploads = store
		deps.MediaRemover = store
		if cfg.MediaDeleteQueueURL != "" {
			deps.MediaRemover = mediadelete.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.MediaDeleteQueueURL)
		}
	}

	if cfg.UpstreamAPIURL != "" {
		proxy, err := httpapi.NewUpstreamProxy(cfg.UpstreamAPIURL, logger)
		if err != nil {
			return nil, err
		}
		deps.Upstream = proxy
	}

	return httpapi.NewServer(deps).Router(), nil
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight requests.
func serve(addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
