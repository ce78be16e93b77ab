package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"ride-relay/internal/config"
	"ride-relay/internal/db"
	grpcrelay "ride-relay/internal/grpc"
	"ride-relay/internal/handlers"
	"ride-relay/internal/middleware"
	"ride-relay/internal/observability"
	"ride-relay/internal/rabbitmq"
	"ride-relay/internal/relay"
	"ride-relay/internal/repositories"
	"ride-relay/internal/telemetry"
	"ride-relay/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	audit := telemetry.NewAuditEmitter(publisher, observability.RoutingAudit, cfg.ServiceName, cfg.Environment)

	var trips repositories.TripRepository = repositories.NewTripRepo(database)
	if cfg.TripGRPCAddr != "" {
		tripConn, err := grpc.Dial(cfg.TripGRPCAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		)
		if err != nil {
			log.Fatalf("failed to connect to trip grpc: %v", err)
		}
		defer tripConn.Close()
		trips = grpcrelay.NewTripClient(tripConn)
		log.Printf("trips read from trip service addr=%s", cfg.TripGRPCAddr)
	}

	accountRepo := repositories.NewAccountRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()
	presence := relay.NewPresence(accountRepo, hub)
	resolver := relay.NewResolver(conversationRepo, trips)
	messages := relay.NewMessageRelay(resolver, messageRepo, hub)
	locations := relay.NewLocationRelay(accountRepo)
	dispatcher := relay.NewDispatcher(hub, hub, accountRepo)

	relayWS := ws.NewRelayWebSocketHandler(hub, presence, messages, locations, audit, cfg.DBTimeout, cfg.WSSendBuffer)
	healthHandler := handlers.NewHealthHandler(database, cfg.DBTimeout)
	tripHandler := handlers.NewTripHandler(messages)
	notifyHandler := handlers.NewNotifyHandler(dispatcher)
	driverHandler := handlers.NewDriverHandler(locations)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/trips/:trip_id/messages", tripHandler.GetTripMessages)
	router.GET("/ws", relayWS.Handle)

	internal := router.Group("/internal", middleware.InternalToken(cfg.InternalAPIToken))
	internal.POST("/notify", notifyHandler.Notify)
	internal.GET("/drivers/:driver_id/location", driverHandler.GetDriverLocation)

	handlers.RegisterDebugRoutes(router, hub, audit, cfg.DebugRoutes)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("http listening port=%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			log.Fatalf("failed to listen grpc: %v", err)
		}
		grpcServer = grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
		)
		grpcrelay.RegisterDispatchServer(grpcServer, grpcrelay.NewDispatchServer(dispatcher))
		go func() {
			log.Printf("grpc listening port=%s", cfg.GRPCPort)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("grpc server stopped: %v", err)
			}
		}()
	}

	if cfg.AMQPURL != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.NotifyQueue, 16)
		if err != nil {
			log.Printf("notification consumer disabled: %v", err)
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx, cfg.ServiceName, rabbitmq.NotificationHandler(dispatcher.Notify)); err != nil {
					log.Printf("notification consumer stopped: %v", err)
				}
			}()
		}
	}

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
