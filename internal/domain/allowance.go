package domain

import "math/big"

// AssetType is the exchange's name for an asset class.
type AssetType string

const (
	AssetCollateral  AssetType = "COLLATERAL"
	AssetConditional AssetType = "CONDITIONAL"
)

// AllowanceState is the progress of a single asset class through
// EnsureAllowance.
type AllowanceState string

const (
	AllowanceUnknown    AllowanceState = "unknown"
	AllowanceChecked    AllowanceState = "checked"
	AllowanceSufficient AllowanceState = "sufficient"
	AllowanceApproving  AllowanceState = "insufficient_approving"
	AllowanceApproved   AllowanceState = "approved"
	AllowanceSynced     AllowanceState = "synced"
)

// AssetAllowance is the on-chain view of one asset class. For CONDITIONAL
// the allowance is MaxUint256 when every operator is approved, else zero.
type AssetAllowance struct {
	AssetType     AssetType      `json:"assetType"`
	Balance       *big.Int       `json:"balance"`
	Allowance     *big.Int       `json:"allowance"`
	NeedsApproval bool           `json:"needsApproval"`
	State         AllowanceState `json:"state"`
	ApprovalTxs   []string       `json:"approvalTxs,omitempty"`
	Synced        bool           `json:"synced"`
	SyncError     string         `json:"syncError,omitempty"`
}

// NeedsApproval reports whether a non-zero balance is not fully spendable.
func NeedsApproval(balance, allowance *big.Int) bool {
	if balance == nil || balance.Sign() <= 0 {
		return false
	}
	if allowance == nil {
		return true
	}
	return allowance.Cmp(balance) < 0
}

// AllowanceStatus is the result of EnsureAllowance.
type AllowanceStatus struct {
	Wallet      string          `json:"wallet"`
	Collateral  *AssetAllowance `json:"collateral"`
	Conditional *AssetAllowance `json:"conditional,omitempty"`
}
