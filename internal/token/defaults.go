package token

import "github.com/ethereum/go-ethereum/common"

// Default returns the registry the service starts from when the config
// does not override it: the chains PYUSD is deployed on, the PYUSD
// deployments themselves and the usual hub assets on each chain.
func Default() *Registry {
	r := NewRegistry()

	chains := []Chain{
		{ID: ChainEthereum, Name: "ethereum", NativeSymbol: "ETH", WrappedNative: "WETH"},
		{ID: ChainOptimism, Name: "optimism", NativeSymbol: "ETH", WrappedNative: "WETH"},
		{ID: ChainPolygon, Name: "polygon", NativeSymbol: "MATIC", WrappedNative: "WMATIC"},
		{ID: ChainBase, Name: "base", NativeSymbol: "ETH", WrappedNative: "WETH"},
		{ID: ChainArbitrum, Name: "arbitrum", NativeSymbol: "ETH", WrappedNative: "WETH"},
	}
	for _, c := range chains {
		_ = r.AddChain(c)
	}

	tokens := []Token{
		{Symbol: "PYUSD", Chain: ChainEthereum, Address: common.HexToAddress("0x6c3ea9036406852006290770BEdFcAbA0e23A0e8"), Decimals: 6},
		{Symbol: "PYUSD", Chain: ChainArbitrum, Address: common.HexToAddress("0xFd9aC3ce15C6acB283690624687a99D351704169"), Decimals: 6},
		{Symbol: "PYUSD", Chain: ChainOptimism, Address: common.HexToAddress("0xcd7169D55d8cff1183ef0e1E701e549997Cf471F"), Decimals: 6},
		{Symbol: "PYUSD", Chain: ChainBase, Address: common.HexToAddress("0xB37B6B5685B89802EfE00116330C98c504CbD168"), Decimals: 6},
		{Symbol: "PYUSD", Chain: ChainPolygon, Address: common.HexToAddress("0x34A13e66A0De47c3AD16F47F0D0CA3e7a2E91Ee9"), Decimals: 6},

		{Symbol: "WETH", Chain: ChainEthereum, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18},
		{Symbol: "USDC", Chain: ChainEthereum, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6},
		{Symbol: "USDT", Chain: ChainEthereum, Address: common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), Decimals: 6},
		{Symbol: "DAI", Chain: ChainEthereum, Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Decimals: 18},

		{Symbol: "WETH", Chain: ChainArbitrum, Address: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), Decimals: 18},
		{Symbol: "USDC", Chain: ChainArbitrum, Address: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), Decimals: 6},

		{Symbol: "WETH", Chain: ChainOptimism, Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
		{Symbol: "USDC", Chain: ChainOptimism, Address: common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"), Decimals: 6},

		{Symbol: "WETH", Chain: ChainBase, Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
		{Symbol: "USDC", Chain: ChainBase, Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6},

		{Symbol: "WMATIC", Chain: ChainPolygon, Address: common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"), Decimals: 18},
		{Symbol: "WETH", Chain: ChainPolygon, Address: common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"), Decimals: 18},
		{Symbol: "USDC", Chain: ChainPolygon, Address: common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"), Decimals: 6},
	}
	for _, t := range tokens {
		_ = r.AddToken(t)
	}

	_ = r.SetHubs(ChainEthereum, []string{"WETH", "USDC"})
	_ = r.SetHubs(ChainArbitrum, []string{"WETH", "USDC"})
	_ = r.SetHubs(ChainOptimism, []string{"WETH", "USDC"})
	_ = r.SetHubs(ChainBase, []string{"WETH", "USDC"})
	_ = r.SetHubs(ChainPolygon, []string{"WMATIC", "USDC"})

	return r
}
