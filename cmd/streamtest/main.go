// streamtest opens Bybit public streams and prints decoded frames to console.
// Usage: go run ./cmd/streamtest --category linear --channels tickers,kline.1 --symbols BTCUSDT,ETHUSDT
//
// Pass --all-symbols to subscribe every trading instrument of the category
// (fetched over REST), split across as many streams as needed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rickgao/bybit-streams/internal/api"
	"github.com/rickgao/bybit-streams/internal/buffer"
	"github.com/rickgao/bybit-streams/internal/config"
	"github.com/rickgao/bybit-streams/internal/endpoint"
	"github.com/rickgao/bybit-streams/internal/manager"
	"github.com/rickgao/bybit-streams/internal/stream"
	"github.com/rickgao/bybit-streams/internal/wire"
)

const bufferName = "streamtest"

func main() {
	configPath := flag.String("config", "", "optional config file for manager settings")
	exchange := flag.String("exchange", config.DefaultExchange, "exchange, e.g. bybit.com or bybit.com-testnet")
	category := flag.String("category", "linear", "spot, linear, inverse or option")
	channels := flag.String("channels", "tickers", "comma separated channels")
	symbols := flag.String("symbols", "BTCUSDT", "comma separated symbols")
	allSymbols := flag.Bool("all-symbols", false, "subscribe every trading symbol of the category")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg := config.Default()
	cfg.Exchange = *exchange
	if *configPath != "" {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	} else if err := cfg.Validate(); err != nil {
		logger.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	syms := splitList(*symbols)
	if *allSymbols {
		ex, _ := endpoint.ParseExchange(cfg.Exchange)
		restURL := cfg.API.RestURL
		if restURL == "" {
			restURL = ex.RestURL()
		}
		apiClient := api.NewClient(restURL, api.WithLogger(logger))

		var err error
		syms, err = apiClient.GetSymbols(ctx, *category)
		if err != nil {
			logger.Error("failed to fetch symbols", "category", *category, "error", err)
			os.Exit(1)
		}
		logger.Info("fetched symbols", "category", *category, "count", len(syms))
	}

	opts := cfg.ManagerOptions()
	opts.DefaultOutput = stream.OutputDecoded
	mgr := manager.New(opts, logger)
	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start manager", "error", err)
		os.Exit(1)
	}

	ids, err := mgr.CreateStream(ctx, manager.StreamRequest{
		Category:   *category,
		Channels:   splitList(*channels),
		Symbols:    syms,
		Label:      "streamtest",
		BufferName: bufferName,
		Output:     stream.OutputDecoded,
	})
	if err != nil {
		logger.Error("failed to create stream", "error", err)
		os.Exit(1)
	}
	logger.Info("streams created", "stream_ids", ids)

	// Console printer
	go printRecords(ctx, mgr, *verbose, logger)

	// Lifecycle signals
	go func() {
		for sig := range mgr.Signals() {
			logger.Info("signal", "type", sig.Type, "stream_id", sig.StreamID, "error", sig.Error)
		}
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := mgr.GetStats()
				logger.Info("stats",
					"streams", mgr.GetNumberOfStreams(),
					"subscriptions", mgr.GetNumberOfAllSubscriptions(),
					"receives", snap.Receives,
					"receiving_speed", snap.ReceivingSpeed,
					"reconnects", snap.Reconnects,
					"buffered", mgr.GetStreamBufferLength(bufferName),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	mgr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

// printBatch bounds how many queued records are printed per wakeup.
const printBatch = 100

func printRecords(ctx context.Context, mgr *manager.Manager, verbose bool, logger *slog.Logger) {
	for {
		rec, err := mgr.PopStreamDataWait(ctx, bufferName)
		if err != nil {
			if !errors.Is(err, buffer.ErrClosed) && ctx.Err() == nil {
				logger.Warn("pop stream data", "error", err)
			}
			return
		}
		printRecord(rec, verbose, logger)
		for _, rec := range mgr.PopStreamDataBatch(bufferName, printBatch) {
			printRecord(rec, verbose, logger)
		}
	}
}

func printRecord(rec stream.Record, verbose bool, logger *slog.Logger) {
	if rec.Frame == nil {
		fmt.Printf("[RAW] %s\n", rec.Raw)
		return
	}

	if verbose {
		data, _ := json.MarshalIndent(rec.Frame, "", "  ")
		fmt.Printf("[%s] %s\n", strings.ToUpper(rec.Frame.Channel()), data)
		return
	}
	if line, err := formatFrame(*rec.Frame); err != nil {
		logger.Debug("decode frame", "topic", rec.Frame.Topic, "error", err)
	} else {
		fmt.Println(line)
	}
}

// formatFrame renders one frame as a single console line.
func formatFrame(f wire.Frame) (string, error) {
	switch {
	case strings.HasPrefix(f.Topic, "kline."):
		klines, err := f.Klines()
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(klines))
		for _, k := range klines {
			parts = append(parts, fmt.Sprintf("o=%s h=%s l=%s c=%s vol=%s confirm=%t",
				k.Open, k.High, k.Low, k.Close, k.Volume, k.Confirm))
		}
		return fmt.Sprintf("[KLINE] %s %s", f.Topic, strings.Join(parts, "; ")), nil

	case strings.HasPrefix(f.Topic, "tickers."):
		t, err := f.Ticker()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[TICKER] symbol=%s type=%s last=%s bid=%s ask=%s vol24h=%s",
			t.Symbol, f.Type, nullable(t.LastPrice.Valid, t.LastPrice.Decimal.String()),
			nullable(t.Bid1Price.Valid, t.Bid1Price.Decimal.String()),
			nullable(t.Ask1Price.Valid, t.Ask1Price.Decimal.String()),
			nullable(t.Volume24h.Valid, t.Volume24h.Decimal.String())), nil

	case strings.HasPrefix(f.Topic, "publicTrade."):
		trades, err := f.Trades()
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(trades))
		for _, tr := range trades {
			parts = append(parts, fmt.Sprintf("%s %s@%s", tr.Side, tr.Size, tr.Price))
		}
		return fmt.Sprintf("[TRADE] symbol=%s %s", f.Symbol(), strings.Join(parts, ", ")), nil
	}

	return fmt.Sprintf("[%s] topic=%s bytes=%d", strings.ToUpper(f.Channel()), f.Topic, len(f.Data)), nil
}

func nullable(valid bool, s string) string {
	if !valid {
		return "-"
	}
	return s
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
