package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaiKingDuck555/imessage-kit-concierge/config"
	"github.com/PaiKingDuck555/imessage-kit-concierge/handlers"
	"github.com/PaiKingDuck555/imessage-kit-concierge/routes"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/concierge"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/gateway"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/intent"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/reservation"
	"github.com/PaiKingDuck555/imessage-kit-concierge/services/transport"
	"github.com/PaiKingDuck555/imessage-kit-concierge/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	if config.AppConfig.RecipientHandle == "" {
		logger.Sugar().Fatal("main: RECIPIENT_HANDLE must be configured")
	}

	// services.
	resySvc := reservation.NewDefaultReservationService(
		config.AppConfig.ResyBaseURL,
		config.AppConfig.ResyAPIKey,
		config.AppConfig.ResyAuthToken,
		config.AppConfig.StrictAvailabilityMatch,
	)
	intentSvc := intent.NewDefaultIntentService(
		config.AppConfig.OpenAIAPIKey,
		config.AppConfig.OpenAIModel,
	)
	conversationSvc := concierge.NewDefaultConversationService(intentSvc, resySvc)

	imsg, err := transport.NewIMessageTransport(
		config.AppConfig.ChatDBPath,
		time.Duration(config.AppConfig.PollIntervalMS)*time.Millisecond,
		config.AppConfig.SendRatePerMin,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to open message transport: %v", err)
	}

	loop := gateway.NewLoop(imsg, conversationSvc, config.AppConfig.RecipientHandle)

	utils.StartHealthMonitor(resySvc.Ping, imsg.Ping)

	// Local ops server, disabled when OPS_PORT is "0".
	var opsSrv *http.Server
	if port := config.AppConfig.OpsPort; port != "" && port != "0" {
		if config.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Recovery())
		router.Use(utils.ErrorHandler())
		routes.RegisterRoutes(router, handlers.NewOpsHandler(loop.Snapshot))

		opsSrv = &http.Server{
			Addr:    "127.0.0.1:" + port,
			Handler: router,
		}
		logger.Sugar().Infof("Starting ops server on %s...", opsSrv.Addr)
		go func() {
			if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Sugar().Fatalf("main: ops server failed to start: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()
	logger.Sugar().Infof("Watching for messages to %s...", config.AppConfig.RecipientHandle)

	// Wait for an OS signal (or the loop dying) to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Sugar().Info("main: shutting down...")
	case err := <-loopDone:
		if err != nil {
			logger.Sugar().Errorf("main: gateway loop stopped: %v", err)
		}
	}

	cancel()
	if err := imsg.Close(); err != nil {
		logger.Sugar().Warnf("main: closing transport: %v", err)
	}

	if opsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Warnf("main: ops server forced to shutdown: %v", err)
		}
	}

	logger.Sugar().Info("main: stopped gracefully")
}
