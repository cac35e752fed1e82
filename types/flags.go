package types

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
	FlagOwner     = "owner"
	FlagToken     = "token"
	FlagFunds     = "funds"
	FlagURL       = "url"
	FlagKey       = "key"
	FlagNonce     = "nonce"
)
