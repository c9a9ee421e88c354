package sse_test

import (
	"io"
	"log"

	"bitmarket/engine"
)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
}

func bidEvent(id engine.AuctionID, amount engine.Balance) engine.Event {
	return engine.Event{
		Type:      engine.EventBidPlaced,
		AuctionID: id,
		Actor:     "alice",
		Amount:    amount,
		At:        100,
	}
}
