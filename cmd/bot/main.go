// Random-walk order bot: posts randomized bids and asks around a
// drifting reference price to a running trading server. Load-testing
// aid; talks only to the HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type orderRequest struct {
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	ClientID uint64          `json:"clientId"`
}

type registerRequest struct {
	ID     uint64          `json:"id"`
	Cash   decimal.Decimal `json:"cash"`
	Assets decimal.Decimal `json:"assets"`
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:3000", "trading server base URL")
		clientID = flag.Uint64("client", 1, "client identifier to trade as")
		register = flag.Bool("register", false, "register the client before trading")
		interval = flag.Duration("interval", 250*time.Millisecond, "delay between orders")
		mid      = flag.Float64("mid", 100, "starting reference price")
	)
	flag.Parse()

	httpc := &http.Client{Timeout: 5 * time.Second}

	if *register {
		body, _ := json.Marshal(registerRequest{
			ID:     *clientID,
			Cash:   decimal.NewFromInt(1_000_000),
			Assets: decimal.NewFromInt(10_000),
		})
		resp, err := httpc.Post(*baseURL+"/api/v1/clients", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("register: %v", err)
		}
		resp.Body.Close()
		log.Printf("registered client %d (status %s)", *clientID, resp.Status)
	}

	price := *mid
	for {
		// Drift the reference price and quote both sides around it.
		price += (rand.Float64() - 0.5) * 2
		if price < 1 {
			price = 1
		}

		side := "bid"
		offset := -rand.Float64() * 2
		if rand.Intn(2) == 1 {
			side = "ask"
			offset = rand.Float64() * 2
		}

		req := orderRequest{
			Side:     side,
			Price:    decimal.NewFromFloat(price + offset).Round(2),
			Quantity: decimal.NewFromInt(int64(1 + rand.Intn(10))),
			ClientID: *clientID,
		}
		body, _ := json.Marshal(req)

		resp, err := httpc.Post(*baseURL+"/api/v1/orders", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("submit: %v", err)
			time.Sleep(*interval)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			log.Printf("submit rejected: %s", resp.Status)
		} else {
			fmt.Printf("%s %s x %s\n", req.Side, req.Price, req.Quantity)
		}
		resp.Body.Close()

		time.Sleep(*interval)
	}
}
