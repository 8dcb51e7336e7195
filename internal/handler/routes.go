package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dialworks/outbound-call-service/internal/adapters/livekit"
	"github.com/dialworks/outbound-call-service/internal/adapters/twilio"
	"github.com/dialworks/outbound-call-service/internal/config"
	"github.com/dialworks/outbound-call-service/internal/repository"
	"github.com/dialworks/outbound-call-service/internal/services/calls"
	"github.com/dialworks/outbound-call-service/pkg/logger"
	redispkg "github.com/dialworks/outbound-call-service/pkg/redis"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HandlerManager wires all services and handlers together.
type HandlerManager struct {
	config      *config.ServiceConfig
	repoManager repository.RepositoryManager
	roomClient  *livekit.RoomClient

	orchestrator *calls.Orchestrator
	runner       *calls.Runner
	reconciler   *calls.Reconciler

	redisSvc *redispkg.RedisService
}

// NewHandlerManager creates and initializes all services and handlers.
func NewHandlerManager(cfg *config.ServiceConfig) (*HandlerManager, error) {
	// Initialize database connection
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// LiveKit room service and dialer
	lkConfig, err := livekit.NewLiveKitConfig(
		cfg.LiveKitServerURL,
		cfg.LiveKitAPIKey,
		cfg.LiveKitAPISecret,
		cfg.LiveKitSIPTrunkID,
	)
	if err != nil {
		logger.Base().Error("invalid livekit configuration", zap.Error(err))
		return nil, err
	}
	roomClient, err := livekit.NewRoomClient(lkConfig)
	if err != nil {
		return nil, err
	}

	// Primary dialer is SIP through LiveKit when a trunk is configured;
	// direct Twilio dialing otherwise.
	var dialer calls.Dialer
	if cfg.LiveKitSIPTrunkID != "" {
		dialer, err = livekit.NewSIPDialer(lkConfig)
		if err != nil {
			return nil, err
		}
		logger.Base().Info("using sip dialer", zap.String("trunk_id", cfg.LiveKitSIPTrunkID))
	}

	var twilioDialer *twilio.Dialer
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		twilioDialer, err = twilio.NewDialer(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
		if err != nil {
			logger.Base().Warn("failed to initialize twilio dialer", zap.Error(err))
		}
	}
	if dialer == nil {
		if twilioDialer == nil {
			return nil, errors.New("no dialer configured, set LIVEKIT_SIP_TRUNK_ID or Twilio credentials")
		}
		dialer = twilioDialer
		logger.Base().Info("using twilio direct dialer")
	}

	// Redis is optional. Without it the service runs fine, just without
	// live status events.
	var redisSvc *redispkg.RedisService
	if cfg.RedisHost != "" {
		redisSvc, err = redispkg.NewRedisService(&redispkg.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize redis, running without live events", zap.Error(err))
			redisSvc = nil
		}
	}
	var events calls.EventPublisher
	if redisSvc != nil {
		events = redisSvc
	}

	orchestrator := calls.NewOrchestrator(
		repoManager.Calls(),
		repoManager.Leads(),
		roomClient,
		dialer,
		cfg.Timing,
		events,
	)
	if twilioDialer != nil {
		orchestrator.SetTestDialer(twilioDialer)
	}

	runner := calls.NewRunner(repoManager.Campaigns(), repoManager.Leads(), orchestrator, rate.Inf)
	reconciler := calls.NewReconciler(repoManager.Calls(), repoManager.Leads(), roomClient, cfg.Timing)

	// Background stale call sweep
	go reconciler.StartSweepLoop(context.Background(), time.Minute)

	return &HandlerManager{
		config:       cfg,
		repoManager:  repoManager,
		roomClient:   roomClient,
		orchestrator: orchestrator,
		runner:       runner,
		reconciler:   reconciler,
		redisSvc:     redisSvc,
	}, nil
}

// SetupAllRoutes sets up all routes with middleware.
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	if hm.config.EnableCORS {
		router.Use(CORSMiddleware)
	}
	router.Use(LoggingMiddleware)

	hm.SetupAPIRoutes(router)

	systemHandler := hm.newSystemHandler()
	router.HandleFunc("/health", systemHandler.HealthCheck).Methods("GET")

	logger.Base().Info("all application routes registered")
}

// SetupAPIRoutes sets up the /api routes and middleware.
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(ValidationMiddleware)

	callHandler := NewCallHandler(hm.repoManager, hm.orchestrator, hm.roomClient)
	callHandler.SetupCallRoutes(apiRouter)

	campaignHandler := NewCampaignHandler(hm.repoManager, hm.runner)
	campaignHandler.SetupCampaignRoutes(apiRouter)

	systemHandler := hm.newSystemHandler()
	systemHandler.SetupSystemRoutes(apiRouter)

	if hm.config.EnableCORS {
		router.PathPrefix("/api/").HandlerFunc(handleCORSPreflight).Methods("OPTIONS")
	}

	logger.Base().Info("api routes registered")
}

func (hm *HandlerManager) newSystemHandler() *SystemHandler {
	var redisIface redispkg.RedisServiceInterface
	if hm.redisSvc != nil {
		redisIface = hm.redisSvc
	}
	return NewSystemHandler(hm.repoManager, hm.reconciler, hm.roomClient, redisIface)
}

// GetRepoManager returns the repository manager.
func (hm *HandlerManager) GetRepoManager() repository.RepositoryManager {
	return hm.repoManager
}

// Close releases database and cache connections.
func (hm *HandlerManager) Close() error {
	return hm.repoManager.Close()
}

// handleCORSPreflight handles CORS preflight requests for API routes.
func handleCORSPreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}
