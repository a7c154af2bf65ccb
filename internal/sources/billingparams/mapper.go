package billingparams

import (
	"fmt"
	"math/big"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/lifecycle"
)

const (
	defaultDecimals = 18
	defaultFeeBps   = 10
)

// Settings is the validated, base-unit view of the parameters file, ready to
// wire into the ledgers and the lifecycle manager.
type Settings struct {
	Params          lifecycle.Params
	TokenUnit       *big.Int
	PlatformFeeBps  uint64
	Owner           domain.Address
	Monitor         domain.Address
	FeeAccount      domain.Address
	OperatorDeposit *big.Int
}

// Mapper converts the raw parameters config into Settings.
type Mapper struct{}

// NewMapper creates a new parameters mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map validates the config and converts whole-token amounts to base units.
func (m *Mapper) Map(config *Config) (*Settings, error) {
	if config.Token.Symbol == "" {
		return nil, fmt.Errorf("token.symbol is required")
	}
	if config.Identities.Owner == "" {
		return nil, fmt.Errorf("identities.owner is required")
	}
	if config.Billing.MonthlyRate == "" {
		return nil, fmt.Errorf("billing.monthly_rate is required")
	}

	decimals := config.Token.Decimals
	if decimals == 0 {
		decimals = defaultDecimals
	}
	if decimals < 0 || decimals > 38 {
		return nil, fmt.Errorf("token.decimals %d out of range", decimals)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	monthlyRate, err := toBaseUnits(config.Billing.MonthlyRate, unit)
	if err != nil {
		return nil, fmt.Errorf("billing.monthly_rate: %w", err)
	}
	if monthlyRate.Sign() <= 0 {
		return nil, fmt.Errorf("billing.monthly_rate must be positive")
	}

	feeBps := config.Billing.PlatformFeeBps
	if feeBps == 0 {
		feeBps = defaultFeeBps
	}
	if feeBps > epoch.MaxBps {
		return nil, fmt.Errorf("billing.platform_fee_bps %d exceeds %d", feeBps, epoch.MaxBps)
	}

	lockup := epoch.Epoch(config.Billing.LockupPeriodEpochs)
	if lockup == 0 {
		lockup = epoch.EpochsPerMonth
	}

	deposit := new(big.Int)
	if config.Bootstrap.OperatorDeposit != "" {
		deposit, err = toBaseUnits(config.Bootstrap.OperatorDeposit, unit)
		if err != nil {
			return nil, fmt.Errorf("bootstrap.operator_deposit: %w", err)
		}
	}

	return &Settings{
		Params: lifecycle.Params{
			Token:        config.Token.Symbol,
			MonthlyRate:  monthlyRate,
			LockupPeriod: lockup,
		},
		TokenUnit:       unit,
		PlatformFeeBps:  feeBps,
		Owner:           domain.Address(config.Identities.Owner),
		Monitor:         domain.Address(config.Identities.Monitor),
		FeeAccount:      domain.Address(config.Identities.FeeAccount),
		OperatorDeposit: deposit,
	}, nil
}

// toBaseUnits parses a whole-token decimal string and scales it by unit.
func toBaseUnits(amount string, unit *big.Int) (*big.Int, error) {
	tokens, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a valid integer token amount", amount)
	}
	if tokens.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", amount)
	}
	return new(big.Int).Mul(tokens, unit), nil
}
