package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction says which side of the level triggers an alert.
type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// ParseDirection accepts above/below and the usual shorthands.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "above", "up", ">":
		return Above, nil
	case "below", "down", "<":
		return Below, nil
	default:
		return "", fmt.Errorf("unknown alert direction %q", s)
	}
}

// Alert fires once when the polled price reaches Level from the given direction.
type Alert struct {
	ID        int
	Pair      string
	Level     decimal.Decimal
	Direction Direction
	CreatedAt time.Time
}

func (a Alert) triggered(price decimal.Decimal) bool {
	if a.Direction == Above {
		return price.GreaterThanOrEqual(a.Level)
	}
	return price.LessThanOrEqual(a.Level)
}

// AlertEvent is delivered on Notifications when an alert fires.
type AlertEvent struct {
	Alert Alert
	Price decimal.Decimal
	At    time.Time
}

// SetPriceAlert registers a one-shot alert on pair.
func (b *Bot) SetPriceAlert(pair string, level decimal.Decimal, direction string) (Alert, error) {
	dir, err := ParseDirection(direction)
	if err != nil {
		return Alert{}, err
	}
	if !level.IsPositive() {
		return Alert{}, fmt.Errorf("alert level must be positive, got %s", level)
	}
	if !b.knownPair(pair) {
		return Alert{}, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	a := Alert{ID: b.nextID, Pair: pair, Level: level, Direction: dir, CreatedAt: b.now().UTC()}
	b.alerts = append(b.alerts, a)
	b.log.Info().Int("id", a.ID).Str("pair", pair).Str("level", level.String()).Str("direction", string(dir)).Msg("price alert set")
	return a, nil
}

// Alerts returns the pending alerts.
func (b *Bot) Alerts() []Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Alert(nil), b.alerts...)
}

// Notifications delivers fired alerts. Events are dropped when nobody drains the channel.
func (b *Bot) Notifications() <-chan AlertEvent { return b.notify }

func (b *Bot) knownPair(pair string) bool {
	for _, p := range b.opts.Pairs {
		if p == pair {
			return true
		}
	}
	return false
}

func (b *Bot) checkAlerts(prices map[string]decimal.Decimal) {
	b.mu.Lock()
	var fired []AlertEvent
	pending := b.alerts[:0]
	for _, a := range b.alerts {
		price, ok := prices[a.Pair]
		if ok && a.triggered(price) {
			fired = append(fired, AlertEvent{Alert: a, Price: price, At: b.now().UTC()})
			continue
		}
		pending = append(pending, a)
	}
	b.alerts = pending
	b.mu.Unlock()

	for _, ev := range fired {
		b.log.Warn().
			Int("id", ev.Alert.ID).
			Str("pair", ev.Alert.Pair).
			Str("level", ev.Alert.Level.String()).
			Str("price", ev.Price.String()).
			Str("direction", string(ev.Alert.Direction)).
			Msg("price alert triggered")
		select {
		case b.notify <- ev:
		default:
			b.log.Warn().Int("id", ev.Alert.ID).Msg("alert notification dropped")
		}
	}
}
