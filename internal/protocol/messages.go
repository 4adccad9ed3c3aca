package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openpredict/termfeed/internal/model"
)

// Sentinel errors returned by the codec.
var (
	// ErrUnknownType indicates a frame whose discriminator this client
	// does not speak.
	ErrUnknownType = errors.New("unknown message type")

	// ErrBadSubscription indicates a subscription object missing required
	// fields or carrying an unknown channel type.
	ErrBadSubscription = errors.New("malformed subscription")
)

// Type is the wire discriminator carried in every frame's "type" field.
type Type string

const (
	// Inbound frame types.
	TypeSubscribed       Type = "subscribed"
	TypeUnsubscribed     Type = "unsubscribed"
	TypePriceUpdate      Type = "price_update"
	TypeOrderBookUpdate  Type = "order_book_update"
	TypeTradeUpdate      Type = "trade_update"
	TypeNewsUpdate       Type = "news_update"
	TypeError            Type = "error"
	TypePong             Type = "pong"
	TypeConnectionStatus Type = "connection_status"

	// Outbound frame types.
	TypeSubscribe   Type = "subscribe"
	TypeUnsubscribe Type = "unsubscribe"
	TypePing        Type = "ping"
)

// BookUpdateType distinguishes full snapshots from incremental updates.
type BookUpdateType string

const (
	BookSnapshot BookUpdateType = "snapshot"
	BookDelta    BookUpdateType = "delta"
)

// ErrorCode classifies error frames sent by the upstream.
type ErrorCode string

const (
	ErrCodeInvalidMessage      ErrorCode = "invalid_message"
	ErrCodeUnknownSubscription ErrorCode = "unknown_subscription"
	ErrCodeMarketNotFound      ErrorCode = "market_not_found"
	ErrCodePlatformError       ErrorCode = "platform_error"
	ErrCodeRateLimited         ErrorCode = "rate_limited"
	ErrCodeInternalError       ErrorCode = "internal_error"
)

// Retryable reports whether the condition is transient and the triggering
// request may be retried.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodePlatformError, ErrCodeRateLimited, ErrCodeInternalError:
		return true
	}
	return false
}

// PlatformStatus is the upstream's view of its own venue connection, reported
// in connection_status frames. It is distinct from the client-side
// model.ConnState.
type PlatformStatus string

const (
	PlatformConnected    PlatformStatus = "connected"
	PlatformConnecting   PlatformStatus = "connecting"
	PlatformDisconnected PlatformStatus = "disconnected"
	PlatformFailed       PlatformStatus = "failed"
)

// Inbound is one decoded upstream frame.
type Inbound interface {
	// MessageType returns the frame's wire discriminator.
	MessageType() Type
}

// Subscribed confirms a subscribe request.
type Subscribed struct {
	Subscription model.Subscription
}

func (Subscribed) MessageType() Type { return TypeSubscribed }

// Unsubscribed confirms an unsubscribe request.
type Unsubscribed struct {
	Subscription model.Subscription
}

func (Unsubscribed) MessageType() Type { return TypeUnsubscribed }

// PriceUpdate carries the latest yes/no probability pair for a market.
type PriceUpdate struct {
	Platform  model.Platform  `json:"platform"`
	MarketID  string          `json:"market_id"`
	YesPrice  decimal.Decimal `json:"yes_price"`
	NoPrice   decimal.Decimal `json:"no_price"`
	Timestamp time.Time       `json:"timestamp"`
}

func (PriceUpdate) MessageType() Type { return TypePriceUpdate }

// OrderBookUpdate carries a four-sided book snapshot or delta.
type OrderBookUpdate struct {
	Platform   model.Platform    `json:"platform"`
	MarketID   string            `json:"market_id"`
	UpdateType BookUpdateType    `json:"update_type"`
	YesBids    []model.BookLevel `json:"yes_bids"`
	YesAsks    []model.BookLevel `json:"yes_asks"`
	NoBids     []model.BookLevel `json:"no_bids"`
	NoAsks     []model.BookLevel `json:"no_asks"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (OrderBookUpdate) MessageType() Type { return TypeOrderBookUpdate }

// Book converts the update into a model.OrderBook with the ordering
// invariant established.
func (u OrderBookUpdate) Book() model.OrderBook {
	book := model.OrderBook{
		MarketID:  u.MarketID,
		Platform:  u.Platform,
		Timestamp: u.Timestamp,
		YesBids:   u.YesBids,
		YesAsks:   u.YesAsks,
		NoBids:    u.NoBids,
		NoAsks:    u.NoAsks,
	}
	book.Normalize()
	return book
}

// TradeUpdate carries one executed trade.
type TradeUpdate struct {
	Platform model.Platform `json:"platform"`
	MarketID string         `json:"market_id"`
	Trade    model.Trade    `json:"trade"`
}

func (TradeUpdate) MessageType() Type { return TypeTradeUpdate }

// NewsUpdate carries one news item, optionally tied to a market.
type NewsUpdate struct {
	Item          model.NewsItem           `json:"item"`
	MarketContext *model.MarketNewsContext `json:"market_context,omitempty"`
}

func (NewsUpdate) MessageType() Type { return TypeNewsUpdate }

// ServerError is an error frame from the upstream.
type ServerError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (ServerError) MessageType() Type { return TypeError }

// Error implements the error interface so frames can flow through error
// channels unchanged.
func (e ServerError) Error() string {
	return fmt.Sprintf("upstream error %s: %s", e.Code, e.Message)
}

// Pong answers a ping. Both timestamps are unix milliseconds; the client one
// is echoed back verbatim.
type Pong struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

func (Pong) MessageType() Type { return TypePong }

// Latency returns the round-trip time measured against now.
func (p Pong) Latency(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(p.ClientTimestamp))
}

// ConnectionStatus reports the upstream's connectivity to one venue.
type ConnectionStatus struct {
	Platform model.Platform `json:"platform"`
	Status   PlatformStatus `json:"status"`
}

func (ConnectionStatus) MessageType() Type { return TypeConnectionStatus }
