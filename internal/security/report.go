package security

import "time"

type PasswordReport struct {
	Algorithm   string
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	TokenFormat           string
	SigningAlgorithm      string
	SignedTokens          bool
	SessionTTL            time.Duration
	Password              PasswordReport
	LegacyDigestsAccepted bool
	LegacyUpgradeOnLogin  bool
	AuditEnabled          bool
	PacingEnabled         bool
}

type ReportInput struct {
	TokenFormat      string
	SigningAlgorithm string
	SessionTTL       time.Duration
	Password         PasswordReport
	UpgradeOnLogin   bool
	AuditEnabled     bool
	StageDelay       time.Duration
	ErrorDelay       time.Duration
}

// BuildReport summarises input. Legacy SHA-256 digests always verify, so
// they are reported as accepted regardless of the configured algorithm;
// upgrades only happen when new digests use Argon2id.
func BuildReport(input ReportInput) Report {
	signed := input.TokenFormat == "jwt"
	algo := ""
	if signed {
		algo = input.SigningAlgorithm
	}

	return Report{
		TokenFormat:           input.TokenFormat,
		SigningAlgorithm:      algo,
		SignedTokens:          signed,
		SessionTTL:            input.SessionTTL,
		Password:              input.Password,
		LegacyDigestsAccepted: true,
		LegacyUpgradeOnLogin:  input.UpgradeOnLogin && input.Password.Algorithm == "argon2id",
		AuditEnabled:          input.AuditEnabled,
		PacingEnabled:         input.StageDelay > 0 || input.ErrorDelay > 0,
	}
}
