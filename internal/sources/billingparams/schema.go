package billingparams

// TokenConfig describes the settlement token.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
}

// BillingConfig holds the pricing knobs.
// monthly_rate and amounts are decimal strings in whole tokens so that
// 18-decimal tokens never overflow a YAML integer.
type BillingConfig struct {
	MonthlyRate        string `yaml:"monthly_rate"`
	PlatformFeeBps     uint64 `yaml:"platform_fee_bps"`
	LockupPeriodEpochs uint64 `yaml:"lockup_period_epochs"`
}

// IdentitiesConfig names the principals of the billing system.
type IdentitiesConfig struct {
	Owner      string `yaml:"owner"`
	Monitor    string `yaml:"monitor"`
	FeeAccount string `yaml:"fee_account"`
}

// BootstrapConfig seeds the ledger on a fresh start.
type BootstrapConfig struct {
	OperatorDeposit string `yaml:"operator_deposit"`
}

// Config is the root structure of the billing parameters file.
type Config struct {
	Token      TokenConfig      `yaml:"token"`
	Billing    BillingConfig    `yaml:"billing"`
	Identities IdentitiesConfig `yaml:"identities"`
	Bootstrap  BootstrapConfig  `yaml:"bootstrap"`
}
