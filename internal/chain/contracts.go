// Package chain reads token balances and approvals from Polygon and sends
// approval transactions.
package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Polygon mainnet deployments.
const (
	CollateralAddress        = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174" // USDC.e
	ConditionalTokensAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
	ExchangeAddress          = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskExchangeAddress   = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	NegRiskAdapterAddress    = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"
)

// Contracts is the set of addresses the order and allowance flows touch.
type Contracts struct {
	Collateral        common.Address
	ConditionalTokens common.Address
	Exchange          common.Address
	NegRiskExchange   common.Address
	NegRiskAdapter    common.Address
}

// PolygonContracts returns the mainnet deployment.
func PolygonContracts() Contracts {
	return Contracts{
		Collateral:        common.HexToAddress(CollateralAddress),
		ConditionalTokens: common.HexToAddress(ConditionalTokensAddress),
		Exchange:          common.HexToAddress(ExchangeAddress),
		NegRiskExchange:   common.HexToAddress(NegRiskExchangeAddress),
		NegRiskAdapter:    common.HexToAddress(NegRiskAdapterAddress),
	}
}

// ContractsFromHex builds Contracts from configured hex strings.
func ContractsFromHex(collateral, ctf, exchange, negRiskExchange, negRiskAdapter string) (Contracts, error) {
	var c Contracts
	for _, f := range []struct {
		name string
		hex  string
		dst  *common.Address
	}{
		{"collateral", collateral, &c.Collateral},
		{"conditional_tokens", ctf, &c.ConditionalTokens},
		{"exchange", exchange, &c.Exchange},
		{"neg_risk_exchange", negRiskExchange, &c.NegRiskExchange},
		{"neg_risk_adapter", negRiskAdapter, &c.NegRiskAdapter},
	} {
		if !common.IsHexAddress(f.hex) {
			return Contracts{}, fmt.Errorf("chain/contracts: %s: invalid address %q", f.name, f.hex)
		}
		*f.dst = common.HexToAddress(f.hex)
	}
	return c, nil
}

// ExchangeFor selects the settlement contract an order is signed for.
func (c Contracts) ExchangeFor(negRisk bool) common.Address {
	if negRisk {
		return c.NegRiskExchange
	}
	return c.Exchange
}

// Spenders are the contracts that pull collateral and conditional tokens
// from a trading wallet.
func (c Contracts) Spenders() []common.Address {
	return []common.Address{c.Exchange, c.NegRiskExchange, c.NegRiskAdapter}
}
