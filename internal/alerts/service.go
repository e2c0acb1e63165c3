// Package alerts keeps a low-stock view in sync with StockChanged events.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	kafkax "github.com/ariefcatur/go-workshop-orders/internal/kafka"
	"github.com/ariefcatur/go-workshop-orders/internal/orders"
	"github.com/ariefcatur/go-workshop-orders/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"sort"
	"time"
)

// Store is the subset of redisx.Alerts the service needs.
type Store interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
	MarkLow(ctx context.Context, partID int64, payload []byte) error
	ClearLow(ctx context.Context, partID int64) error
}

var _ Store = redisx.Alerts{}

type Service struct {
	Store       Store
	Log         *zap.Logger
	ServiceName string
}

// HandleStockChanged is installed as the consumer handler for the stock topic.
func (s *Service) HandleStockChanged(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		s.logger().Warn("skip undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil // poison message: commit and move on
	}
	if env.EventType != orders.EventStockChanged {
		return nil
	}

	// 2) dedup via Redis (event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	first, err := s.Store.FirstSeen(ctx, dkey, redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		_ = s.Store.Forget(ctx, dkey)
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.StockChangedPayload](env.Payload)
	if err != nil {
		s.logger().Warn("skip bad stock payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.New > p.MinStock {
		return s.Store.ClearLow(ctx, p.PartID)
	}
	b, err := json.Marshal(Alert{
		PartID:   p.PartID,
		Name:     p.Name,
		Stock:    p.New,
		MinStock: p.MinStock,
		At:       env.OccurredAt,
	})
	if err != nil {
		return err
	}
	s.logger().Info("part below minimum stock",
		zap.Int64("part_id", p.PartID), zap.Int("stock", p.New), zap.Int("min_stock", p.MinStock))
	return s.Store.MarkLow(ctx, p.PartID, b)
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Alert is the stored low-stock entry.
type Alert struct {
	PartID   int64     `json:"id_repuesto"`
	Name     string    `json:"nombre"`
	Stock    int       `json:"stock_actual"`
	MinStock int       `json:"stock_minimo"`
	At       time.Time `json:"fecha"`
}

// Reader is the read side of the low-stock hash.
type Reader interface {
	LowParts(ctx context.Context) (map[int64]string, error)
}

var _ Reader = redisx.Alerts{}

// List returns the current alerts ordered by part id. Corrupt entries are skipped.
func List(ctx context.Context, r Reader) ([]Alert, error) {
	raw, err := r.LowParts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Alert, 0, len(raw))
	for _, v := range raw {
		var a Alert
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartID < out[j].PartID })
	return out, nil
}
