package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmorandi/tradecore/internal/config"
	"github.com/dmorandi/tradecore/internal/domain"
	"github.com/dmorandi/tradecore/internal/engine"
	"github.com/dmorandi/tradecore/internal/exchange"
	"github.com/dmorandi/tradecore/internal/risk"
	"github.com/dmorandi/tradecore/internal/store"
)

// Starting mid prices in cents, drifted by the simulation as it runs.
var seedMids = map[string]int64{
	"AAPL":  19000,
	"GOOGL": 14000,
	"MSFT":  41000,
	"TSLA":  25000,
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Stores.
	accountStore := store.NewAccountStore()
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()

	// Domain.
	registry := domain.NewInstrumentRegistry()

	// Engines.
	books := engine.NewBookManager()
	riskEngine := risk.NewEngine(accountStore, risk.Limits{
		MaxOrderValue:   cfg.MaxOrderValue,
		MaxPositionSize: cfg.MaxPositionSize,
	})

	// Event sink and exchange.
	sink := exchange.NewChannelSink(cfg.EventBuffer)
	ex := exchange.New(books, riskEngine, orderStore, tradeStore, registry, sink, cfg.VWAPWindow, logger)

	instruments := []string{"AAPL", "GOOGL", "MSFT", "TSLA"}
	for _, sym := range instruments {
		if err := ex.RegisterInstrument(sym); err != nil {
			logger.Error("failed to register instrument", slog.String("symbol", sym), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	accountIDs := make([]string, cfg.SimAccounts)
	for i := range accountIDs {
		accountIDs[i] = fmt.Sprintf("trader-%d", i+1)
		if _, err := ex.CreateAccount(accountIDs[i], cfg.SimStartingCash); err != nil {
			logger.Error("failed to create account", slog.String("account_id", accountIDs[i]), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Start expiration goroutine with cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex.StartExpiry(ctx, cfg.ExpirationInterval)

	// Drain events out-of-band, logging each one.
	eventLog := exchange.NewSlogSink(logger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range sink.Events() {
			eventLog.Publish(ev)
		}
	}()

	logger.Info("simulation starting",
		slog.Int64("seed", cfg.SimSeed),
		slog.Int("orders", cfg.SimOrders),
		slog.Int("accounts", cfg.SimAccounts),
	)

	placed, rejected, canceled := runFlow(cfg, ex, accountIDs, instruments, logger)

	// Let the sweeper catch orders given short expirations above.
	time.Sleep(cfg.ExpirationInterval + 200*time.Millisecond)

	cancel()
	sink.Close()
	wg.Wait()

	logger.Info("simulation finished",
		slog.Int("placed", placed),
		slog.Int("rejected", rejected),
		slog.Int("canceled", canceled),
		slog.Uint64("events_dropped", sink.Dropped()),
	)

	printReport(ex, accountIDs)
}

// runFlow submits the seeded random order flow and returns placement
// counters.
func runFlow(cfg *config.Config, ex *exchange.Exchange, accountIDs, instruments []string, logger *slog.Logger) (placed, rejected, canceled int) {
	rng := rand.New(rand.NewSource(cfg.SimSeed))

	mids := make(map[string]int64, len(seedMids))
	for sym, cents := range seedMids {
		mids[sym] = cents
	}

	var resting []string
	for i := 0; i < cfg.SimOrders; i++ {
		sym := instruments[rng.Intn(len(instruments))]
		accountID := accountIDs[rng.Intn(len(accountIDs))]

		// Drift the mid a little each step.
		mids[sym] += int64(rng.Intn(61) - 30)
		if mids[sym] < 500 {
			mids[sym] = 500
		}

		roll := rng.Intn(10)

		// Occasionally cancel a resting order instead of placing one.
		if roll == 0 && len(resting) > 0 {
			j := rng.Intn(len(resting))
			id := resting[j]
			resting[j] = resting[len(resting)-1]
			resting = resting[:len(resting)-1]
			if _, err := ex.CancelOrder(id); err == nil {
				canceled++
			}
			continue
		}

		side := domain.SideBuy
		if rng.Intn(2) == 1 {
			side = domain.SideSell
		}

		req := exchange.PlaceOrderRequest{
			AccountID:  accountID,
			Instrument: sym,
			Side:       side,
			Quantity:   decimal.NewFromInt(int64(1 + rng.Intn(50))),
		}
		if roll == 1 {
			req.Type = domain.OrderTypeMarket
		} else {
			req.Type = domain.OrderTypeLimit
			cents := mids[sym] + int64(rng.Intn(401)-200)
			if cents < 100 {
				cents = 100
			}
			req.Price = decimal.New(cents, -2)
			if rng.Intn(8) == 0 {
				at := time.Now().Add(time.Duration(100+rng.Intn(800)) * time.Millisecond)
				req.ExpiresAt = &at
			}
		}

		o, err := ex.PlaceOrder(req)
		if err != nil {
			var serr *domain.SettlementError
			if errors.As(err, &serr) {
				logger.Error("settlement failure, aborting", slog.String("error", err.Error()))
				os.Exit(1)
			}
			rejected++
			continue
		}

		placed++
		if o.Type == domain.OrderTypeLimit && !o.Status.Terminal() {
			resting = append(resting, o.ID)
		}
	}
	return placed, rejected, canceled
}

// printReport writes the end-of-run market and account summary to
// stdout.
func printReport(ex *exchange.Exchange, accountIDs []string) {
	marks := make(map[string]decimal.Decimal)

	fmt.Println("=== market summary ===")
	for _, sym := range ex.Instruments() {
		info, err := ex.ReferencePrice(sym)
		if err != nil {
			continue
		}
		if info.HasPrice {
			marks[sym] = info.Price
		}

		depth, _ := ex.Depth(sym, 3)
		bid, bidOK, _ := ex.BestBid(sym)
		ask, askOK, _ := ex.BestAsk(sym)
		trades, _ := ex.Trades(sym)

		fmt.Printf("%-6s trades=%-4d", sym, len(trades))
		if info.HasPrice {
			fmt.Printf(" vwap(%s)=%s last=%s", info.Window, info.Price.StringFixed(2), depth.LastTradePrice.StringFixed(2))
		} else {
			fmt.Printf(" no trades yet")
		}
		if bidOK {
			fmt.Printf(" bid=%s", bid.StringFixed(2))
		}
		if askOK {
			fmt.Printf(" ask=%s", ask.StringFixed(2))
		}
		fmt.Println()

		for _, lvl := range depth.Bids {
			fmt.Printf("    bid %s x %s (%d orders)\n", lvl.Price.StringFixed(2), lvl.TotalQuantity.String(), lvl.OrderCount)
		}
		for _, lvl := range depth.Asks {
			fmt.Printf("    ask %s x %s (%d orders)\n", lvl.Price.StringFixed(2), lvl.TotalQuantity.String(), lvl.OrderCount)
		}
	}

	fmt.Println("=== accounts ===")
	for _, id := range accountIDs {
		acct, err := ex.Account(id)
		if err != nil {
			continue
		}

		acct.Mu.Lock()
		cash := acct.Cash
		realized := decimal.Zero
		positions := make([]domain.Position, 0, len(acct.Positions))
		for _, p := range acct.Positions {
			realized = realized.Add(p.RealizedPnL)
			positions = append(positions, *p)
		}
		acct.Mu.Unlock()

		sort.Slice(positions, func(i, j int) bool { return positions[i].Instrument < positions[j].Instrument })

		unrealized, _ := ex.UnrealizedPnL(id, marks)
		fmt.Printf("%-10s cash=%s realized=%s unrealized=%s\n",
			id, cash.StringFixed(2), realized.StringFixed(2), unrealized.StringFixed(2))
		for _, p := range positions {
			if p.Quantity.IsZero() {
				continue
			}
			fmt.Printf("    %-6s qty=%s basis=%s\n", p.Instrument, p.Quantity.String(), p.AvgEntryPrice.StringFixed(2))
		}
	}
}
