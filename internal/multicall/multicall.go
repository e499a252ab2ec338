package multicall

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// tryAggregate lets individual subcalls revert without failing the batch,
// which is what probing several fee tiers in one round trip needs.
const multicallABI = `[
{
    "inputs": [
        {"name": "requireSuccess", "type": "bool"},
        {
            "components": [
                {"name": "target", "type": "address"},
                {"name": "callData", "type": "bytes"}
            ],
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "tryAggregate",
    "outputs": [
        {
            "components": [
                {"name": "success", "type": "bool"},
                {"name": "returnData", "type": "bytes"}
            ],
            "name": "returnData",
            "type": "tuple[]"
        }
    ],
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

// DefaultAddress is the canonical Multicall3 deployment, identical on
// every chain this service routes over.
var DefaultAddress = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

type Caller interface {
	TryAggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	c    ethereum.ContractCaller
	addr common.Address
	abi  abi.ABI
}

func New(c ethereum.ContractCaller, addr common.Address) (*Client, error) {
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	if addr == (common.Address{}) {
		addr = DefaultAddress
	}
	return &Client{c: c, addr: addr, abi: parsedABI}, nil
}

func (c *Client) TryAggregate(ctx context.Context, calls []Call) ([]Result, error) {
	payload, err := c.abi.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	raw, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}

	var unpacked []struct {
		Success    bool
		ReturnData []byte
	}
	if err := c.abi.UnpackIntoInterface(&unpacked, "tryAggregate", raw); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}
	if len(unpacked) != len(calls) {
		return nil, fmt.Errorf("tryAggregate returned %d results for %d calls", len(unpacked), len(calls))
	}

	out := make([]Result, len(unpacked))
	for i, r := range unpacked {
		out[i] = Result{Success: r.Success && len(r.ReturnData) > 0, Data: r.ReturnData}
	}
	return out, nil
}
