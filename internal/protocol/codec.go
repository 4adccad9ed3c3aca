package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openpredict/termfeed/internal/model"
)

// envelope is used for fast type extraction before the full parse.
type envelope struct {
	Type Type `json:"type"`
}

// wireSubscription is the tagged subscription object embedded in subscribe,
// unsubscribe and their confirmations. Global channels omit platform and
// market_id.
type wireSubscription struct {
	Type     string         `json:"type"`
	Platform model.Platform `json:"platform,omitempty"`
	MarketID string         `json:"market_id,omitempty"`
}

type subscriptionFrame struct {
	Subscription wireSubscription `json:"subscription"`
}

type outboundSubscriptionFrame struct {
	Type         Type             `json:"type"`
	Subscription wireSubscription `json:"subscription"`
}

type pingFrame struct {
	Type      Type  `json:"type"`
	Timestamp int64 `json:"timestamp"`
}

// Decode parses one inbound frame into its typed message. Unknown
// discriminators return ErrUnknownType so callers can count and skip them.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeSubscribed:
		var frame subscriptionFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode subscribed: %w", err)
		}
		sub, err := subFromWire(frame.Subscription)
		if err != nil {
			return nil, err
		}
		return Subscribed{Subscription: sub}, nil

	case TypeUnsubscribed:
		var frame subscriptionFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode unsubscribed: %w", err)
		}
		sub, err := subFromWire(frame.Subscription)
		if err != nil {
			return nil, err
		}
		return Unsubscribed{Subscription: sub}, nil

	case TypePriceUpdate:
		var msg PriceUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode price_update: %w", err)
		}
		return msg, nil

	case TypeOrderBookUpdate:
		var msg OrderBookUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode order_book_update: %w", err)
		}
		return msg, nil

	case TypeTradeUpdate:
		var msg TradeUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode trade_update: %w", err)
		}
		return msg, nil

	case TypeNewsUpdate:
		var msg NewsUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode news_update: %w", err)
		}
		return msg, nil

	case TypeError:
		var msg ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode error frame: %w", err)
		}
		return msg, nil

	case TypePong:
		var msg Pong
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode pong: %w", err)
		}
		return msg, nil

	case TypeConnectionStatus:
		var msg ConnectionStatus
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode connection_status: %w", err)
		}
		return msg, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

// EncodeSubscribe builds a subscribe frame for one channel.
func EncodeSubscribe(sub model.Subscription) ([]byte, error) {
	wire, err := subToWire(sub)
	if err != nil {
		return nil, err
	}
	return json.Marshal(outboundSubscriptionFrame{Type: TypeSubscribe, Subscription: wire})
}

// EncodeUnsubscribe builds an unsubscribe frame for one channel.
func EncodeUnsubscribe(sub model.Subscription) ([]byte, error) {
	wire, err := subToWire(sub)
	if err != nil {
		return nil, err
	}
	return json.Marshal(outboundSubscriptionFrame{Type: TypeUnsubscribe, Subscription: wire})
}

// EncodePing builds a ping frame stamped with now in unix milliseconds.
func EncodePing(now time.Time) ([]byte, error) {
	return json.Marshal(pingFrame{Type: TypePing, Timestamp: now.UnixMilli()})
}

func subToWire(s model.Subscription) (wireSubscription, error) {
	if err := validateSub(s.Kind, s.Platform, s.MarketID); err != nil {
		return wireSubscription{}, err
	}
	if s.Kind.Global() {
		return wireSubscription{Type: string(s.Kind)}, nil
	}
	return wireSubscription{
		Type:     string(s.Kind),
		Platform: s.Platform,
		MarketID: s.MarketID,
	}, nil
}

func subFromWire(w wireSubscription) (model.Subscription, error) {
	kind := model.SubscriptionKind(w.Type)
	if err := validateSub(kind, w.Platform, w.MarketID); err != nil {
		return model.Subscription{}, err
	}
	if kind.Global() {
		return model.Subscription{Kind: kind}, nil
	}
	return model.Subscription{Kind: kind, Platform: w.Platform, MarketID: w.MarketID}, nil
}

func validateSub(kind model.SubscriptionKind, platform model.Platform, marketID string) error {
	switch kind {
	case model.KindGlobalNews:
		return nil
	case model.KindPrice, model.KindOrderBook, model.KindTrades, model.KindMarketNews:
		if !platform.Valid() {
			return fmt.Errorf("%w: %s requires a platform", ErrBadSubscription, kind)
		}
		if marketID == "" {
			return fmt.Errorf("%w: %s requires a market_id", ErrBadSubscription, kind)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown channel %q", ErrBadSubscription, kind)
}
