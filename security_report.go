package flowAuth

import "github.com/MrEthical07/flowAuth/internal/security"

type (
	// SecurityReport summarises the security-relevant configuration of an
	// engine. It never contains key material.
	SecurityReport       = security.Report
	PasswordConfigReport = security.PasswordReport
)

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		TokenFormat:      string(e.config.Token.Format),
		SigningAlgorithm: e.config.Token.SigningMethod,
		SessionTTL:       e.config.Session.TTL,
		Password: PasswordConfigReport{
			Algorithm:   e.config.Password.Algorithm,
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		AuditEnabled:   e.config.Audit.Enabled,
		StageDelay:     e.config.Pipeline.StageDelay,
		ErrorDelay:     e.config.Pipeline.ErrorDelay,
	})
}
