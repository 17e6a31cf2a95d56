package topics

const (
	// Mercados
	MarketEvents = "market_events"

	// DLQs
	MarketEventsDLQ = "market_events_dlq"

	// Redis Pub/Sub (fan-out para o WebSocket)
	MarketBroadcast = "market_events_broadcast"
)
