package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ldmdldm/pylot-project/internal/token"
	"go.uber.org/zap"
)

// Aggregator asks an external meta-aggregator (1inch-style REST API) for
// same-chain quotes. The endpoint is GET {base}/{chainId}/quote with
// src/dst/amount query params; the response carries the net output and a
// gas figure.
type Aggregator struct {
	protocol Protocol
	log      *zap.Logger
	http     *http.Client
	baseURL  string
	apiKey   string
}

func NewAggregator(protocol Protocol, baseURL, apiKey string, log *zap.Logger) (*Aggregator, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%s: base url is not configured", protocol)
	}
	return &Aggregator{
		protocol: protocol,
		log:      log,
		http:     &http.Client{Timeout: 6 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
	}, nil
}

func (a *Aggregator) Protocol() Protocol { return a.protocol }
func (a *Aggregator) Kind() Kind         { return KindSwap }

func (a *Aggregator) Supports(in, out token.Token) bool {
	return in.Chain == out.Chain && in.Address != out.Address
}

type aggQuoteResp struct {
	DstAmount   string `json:"dstAmount"`
	Gas         uint64 `json:"gas"`
	Description string `json:"description"`
}

func (a *Aggregator) Quote(ctx context.Context, req Request) (*Quote, error) {
	if req.TokenIn.Chain != req.TokenOut.Chain {
		return nil, Failure(a.protocol, ReasonUnsupported, fmt.Errorf("cross-chain pair"))
	}

	params := url.Values{}
	params.Set("src", req.TokenIn.Address.Hex())
	params.Set("dst", req.TokenOut.Address.Hex())
	params.Set("amount", req.AmountIn.String())
	endpoint := fmt.Sprintf("%s/%d/quote?%s", a.baseURL, req.TokenIn.Chain, params.Encode())

	hreq, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, Failure(a.protocol, ReasonProtocol, err)
	}
	if a.apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.http.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Failure(a.protocol, ReasonTimeout, err)
		}
		return nil, Failure(a.protocol, ReasonProtocol, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var er aggQuoteResp
		if json.Unmarshal(body, &er) == nil && strings.Contains(strings.ToLower(er.Description), "liquidity") {
			return nil, Failure(a.protocol, ReasonNoLiquidity, fmt.Errorf("quote %d: %s", resp.StatusCode, er.Description))
		}
		return nil, Failure(a.protocol, ReasonProtocol, fmt.Errorf("quote %d: %s", resp.StatusCode, string(body)))
	}

	var qr aggQuoteResp
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, Failure(a.protocol, ReasonProtocol, fmt.Errorf("decode quote: %w", err))
	}
	amountOut, ok := new(big.Int).SetString(qr.DstAmount, 10)
	if !ok || amountOut.Sign() <= 0 {
		return nil, Failure(a.protocol, ReasonNoLiquidity, fmt.Errorf("empty quote for %s/%s", req.TokenIn.Symbol, req.TokenOut.Symbol))
	}

	gas := qr.Gas
	if gas == 0 {
		gas = 200_000
	}

	a.log.Debug("aggregator quote",
		zap.String("protocol", string(a.protocol)),
		zap.String("pair", req.TokenIn.Symbol+"/"+req.TokenOut.Symbol),
		zap.String("amount_out", amountOut.String()))

	return &Quote{
		Protocol:    a.protocol,
		Kind:        KindSwap,
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		AmountIn:    new(big.Int).Set(req.AmountIn),
		AmountOut:   amountOut,
		GasEstimate: gas,
		LatencySec:  swapLatencySec,
		Timestamp:   time.Now(),
	}, nil
}
