package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_ws_active_connections",
			Help: "Number of live relay websocket connections.",
		},
	)
	wsActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_ws_active_rooms",
			Help: "Number of trip rooms with at least one member.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	wsDroppedSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ws_dropped_sends_total",
			Help: "Outbound frames dropped because the connection was closed or overflowed.",
		},
		[]string{"reason"},
	)
	presenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_presence_registrations_total",
			Help: "Presence registrations by result.",
		},
		[]string{"result"},
	)
	conversationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_conversations_total",
			Help: "Conversation resolutions that created or raced for a row.",
		},
		[]string{"result"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Chat messages by result.",
		},
		[]string{"result"},
	)
	roomDeliveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_room_deliveries_total",
			Help: "Frames enqueued to room members by broadcasts.",
		},
	)
	locationUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_location_updates_total",
			Help: "Driver location updates by result.",
		},
		[]string{"result"},
	)
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dispatch_total",
			Help: "Targeted deliveries by result.",
		},
		[]string{"result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		wsActiveConnections,
		wsActiveRooms,
		wsEventsTotal,
		wsDroppedSendsTotal,
		presenceTotal,
		conversationsTotal,
		messagesTotal,
		roomDeliveriesTotal,
		locationUpdatesTotal,
		dispatchTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func SetWSActive(connections, rooms int) {
	wsActiveConnections.Set(float64(connections))
	wsActiveRooms.Set(float64(rooms))
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncDroppedSend(reason string) {
	wsDroppedSendsTotal.WithLabelValues(reason).Inc()
}

func IncPresence(result string) {
	presenceTotal.WithLabelValues(result).Inc()
}

func IncConversation(result string) {
	conversationsTotal.WithLabelValues(result).Inc()
}

func IncRelayMessage(result string) {
	messagesTotal.WithLabelValues(result).Inc()
}

func AddRoomDeliveries(n int) {
	if n > 0 {
		roomDeliveriesTotal.Add(float64(n))
	}
}

func IncLocationUpdate(result string) {
	locationUpdatesTotal.WithLabelValues(result).Inc()
}

func IncDispatch(result string) {
	dispatchTotal.WithLabelValues(result).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
