// route-check runs one optimization from the command line and prints the
// decision as JSON. Useful for poking at a config without standing up
// the router: seed prices and gas with flags, point it at a pair, read
// the winning route and every alternative it beat.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ldmdldm/pylot-project/internal/analytics"
	"github.com/ldmdldm/pylot-project/internal/app"
	"github.com/ldmdldm/pylot-project/internal/config"
	"github.com/ldmdldm/pylot-project/internal/optimizer"
	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	from := flag.String("from", "PYUSD", "source token symbol")
	fromChain := flag.Uint64("from-chain", 1, "source chain id")
	to := flag.String("to", "USDC", "target token symbol")
	toChain := flag.Uint64("to-chain", 1, "target chain id")
	amount := flag.String("amount", "", "amount in, base units (required)")
	maxHops := flag.Int("max-hops", 0, "hop cap for this request, 0 = config default")
	timeout := flag.Duration("timeout", 15*time.Second, "overall deadline")
	prices := flag.String("prices", "", "seed prices, comma-separated SYMBOL:CHAIN:PRICE_1E8[:LIQUIDITY]")
	gas := flag.String("gas", "", "seed gas prices, comma-separated CHAIN:WEI")
	verbose := flag.Bool("v", false, "log wiring and quoting detail")
	flag.Parse()

	if *amount == "" {
		fmt.Fprintln(os.Stderr, "-amount is required (base units, e.g. 1000000 for 1 PYUSD)")
		os.Exit(2)
	}
	amountIn, ok := new(big.Int).SetString(*amount, 10)
	if !ok || amountIn.Sign() <= 0 {
		fmt.Fprintf(os.Stderr, "-amount %q is not a positive integer\n", *amount)
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			panic(err)
		}
	}

	core, err := app.Build(cfg, logger)
	if err != nil {
		panic(err)
	}
	seedPrices(core, *prices)
	seedGas(core, *gas)

	opt := optimizer.New(core.Sources, core.Tokens, core.Oracle, core.Scorer, nil, optimizer.Config{
		MaxHops:         cfg.Routing.MaxHops,
		QuoteTimeout:    cfg.QuoteTimeout(),
		QuoteTTL:        cfg.QuoteTTL(),
		MaxLiquidityBps: cfg.Routing.MaxLiquidityBps,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	d, err := opt.FindBestRoute(ctx, optimizer.Request{
		SourceToken: strings.ToUpper(*from),
		TargetToken: strings.ToUpper(*to),
		SourceChain: token.ChainID(*fromChain),
		TargetChain: token.ChainID(*toChain),
		AmountIn:    amountIn,
		MaxHops:     *maxHops,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "no route: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(analytics.FromDecision(*d), "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(out))
}

// seedPrices parses SYMBOL:CHAIN:PRICE_1E8[:LIQUIDITY] entries. Bad
// entries are reported and skipped.
func seedPrices(core *app.App, s string) {
	for _, entry := range splitList(s) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 && len(parts) != 4 {
			fmt.Fprintf(os.Stderr, "bad -prices entry %q (want SYMBOL:CHAIN:PRICE[:LIQUIDITY])\n", entry)
			continue
		}
		chain, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad chain in -prices entry %q: %v\n", entry, err)
			continue
		}
		price, ok := new(big.Int).SetString(parts[2], 10)
		if !ok {
			fmt.Fprintf(os.Stderr, "bad price in -prices entry %q\n", entry)
			continue
		}
		var liquidity *big.Int
		if len(parts) == 4 {
			if liquidity, ok = new(big.Int).SetString(parts[3], 10); !ok {
				fmt.Fprintf(os.Stderr, "bad liquidity in -prices entry %q\n", entry)
				continue
			}
		}
		sym := strings.ToUpper(strings.TrimSpace(parts[0]))
		if err := core.Oracle.UpdatePrice(sym, token.ChainID(chain), price, liquidity); err != nil {
			fmt.Fprintf(os.Stderr, "seed price %s: %v\n", entry, err)
		}
	}
}

// seedGas parses CHAIN:WEI entries.
func seedGas(core *app.App, s string) {
	for _, entry := range splitList(s) {
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			fmt.Fprintf(os.Stderr, "bad -gas entry %q (want CHAIN:WEI)\n", entry)
			continue
		}
		chain, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad chain in -gas entry %q: %v\n", entry, err)
			continue
		}
		wei, ok := new(big.Int).SetString(parts[1], 10)
		if !ok {
			fmt.Fprintf(os.Stderr, "bad wei in -gas entry %q\n", entry)
			continue
		}
		if err := core.Oracle.SetGasPrice(token.ChainID(chain), wei); err != nil {
			fmt.Fprintf(os.Stderr, "seed gas %s: %v\n", entry, err)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
