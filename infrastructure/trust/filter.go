package trust

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ucibridge/application"
	"ucibridge/application/logging"
)

// FilterSettings carries the rate-filter policy derived from configuration.
type FilterSettings struct {
	MaxAttempts       int
	MaxSubnetAttempts int
	Period            time.Duration
	BlockIPs          bool
	BlockSubnets      bool
	LogAttempts       bool
	LogDir            string
	EnginePorts       string
}

// Filter combines the classifier and the attempt ledger and drives the
// firewall collaborator when thresholds are exceeded. Firewall calls happen
// outside the ledger lock.
type Filter struct {
	classifier *Classifier
	ledger     *Ledger
	firewall   application.Firewall
	settings   FilterSettings
	logger     logging.Logger
}

func NewFilter(
	classifier *Classifier,
	firewall application.Firewall,
	settings FilterSettings,
	logger logging.Logger,
) *Filter {
	return &Filter{
		classifier: classifier,
		ledger:     NewLedger(settings.Period),
		firewall:   firewall,
		settings:   settings,
		logger:     logger,
	}
}

func (f *Filter) Classifier() *Classifier {
	return f.classifier
}

func (f *Filter) Ledger() *Ledger {
	return f.ledger
}

// RecordAttempt tracks one untrusted connection attempt and blocks the
// address or its subnet when the respective threshold is exceeded. Trusted
// addresses are ignored.
func (f *Filter) RecordAttempt(ip string) {
	if f.classifier.Trusted(ip) {
		return
	}

	count := f.ledger.RecordAddr(ip)

	if f.settings.LogAttempts {
		message := fmt.Sprintf("untrusted connection attempt from %s, count: %d", ip, count)
		f.logger.Warnf("%s", message)
		f.appendAttemptLog(message)
	}

	if count > f.settings.MaxAttempts {
		if f.settings.BlockIPs {
			f.logger.Warnf("blocking IP %s due to excessive attempts", ip)
			if blockErr := f.firewall.BlockIP(ip, f.settings.EnginePorts); blockErr != nil {
				f.logger.Errorf("failed to block IP %s: %v", ip, blockErr)
			}
		}
		f.ledger.ClearAddr(ip)
	}

	subnet, subnetCount := f.ledger.RecordSubnet(ip)
	if subnetCount > f.settings.MaxSubnetAttempts {
		if f.settings.BlockSubnets {
			f.logger.Warnf("blocking subnet %s due to excessive attempts", subnet)
			if blockErr := f.firewall.BlockSubnet(subnet, f.settings.EnginePorts); blockErr != nil {
				f.logger.Errorf("failed to block subnet %s: %v", subnet, blockErr)
			}
		}
		f.ledger.ClearSubnet(subnet)
	}
}

// appendAttemptLog writes one line to the dedicated untrusted-attempts file.
func (f *Filter) appendAttemptLog(message string) {
	dir := f.settings.LogDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, "untrusted_connection_attempts.log")
	file, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if openErr != nil {
		f.logger.Errorf("failed to write untrusted log: %v", openErr)
		return
	}
	defer func() { _ = file.Close() }()
	_, _ = fmt.Fprintf(file, "%s %s\n", time.Now().Format("2006-01-02 15:04:05"), message)
}
