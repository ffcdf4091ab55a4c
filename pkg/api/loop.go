package api

import (
	"context"
	"time"

	"github.com/christian-spooner/trading-server/pkg/core/engine"
	"github.com/christian-spooner/trading-server/pkg/core/ledger"
)

// RunMatchLoop drives the engine: one execute step per tick, pushing
// each settled trade to subscribers. The engine matches a single
// crossing pair per step, so remaining crossing interest is picked up
// on subsequent ticks. Empty-book and no-crossing outcomes are quiet
// no-ops.
func (s *Server) RunMatchLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("match_loop_stopped")
			return
		case <-ticker.C:
			txn, err := s.eng.Execute()
			if err != nil {
				if !engine.IsNoOp(err) {
					s.log.Warnw("execute_failed", "err", err)
				}
				continue
			}
			s.broadcastTrade(*txn)
			s.broadcastBook()
		}
	}
}

func (s *Server) broadcastTrade(txn ledger.Transaction) {
	s.hub.BroadcastToChannel("trades", TradeUpdate{Type: "trade", Trade: toTradeInfo(txn)})
}

func toTradeInfo(txn ledger.Transaction) TradeInfo {
	return TradeInfo{
		ID:        txn.ID,
		BuyerID:   txn.BuyerID,
		SellerID:  txn.SellerID,
		Price:     txn.Price,
		Quantity:  txn.Quantity,
		Timestamp: txn.Timestamp.UnixMilli(),
	}
}
