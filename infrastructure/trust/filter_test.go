package trust

import (
	"sync"
	"testing"
	"time"
)

type recordingFirewall struct {
	mu             sync.Mutex
	blockedIPs     []string
	blockedSubnets []string
}

func (f *recordingFirewall) BlockIP(ip, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockedIPs = append(f.blockedIPs, ip)
	return nil
}

func (f *recordingFirewall) BlockSubnet(subnet, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockedSubnets = append(f.blockedSubnets, subnet)
	return nil
}

func (f *recordingFirewall) UnblockTrusted(_, _ []string) error { return nil }

func (f *recordingFirewall) Configure(_ string, _, _ []string) error { return nil }

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func TestFilterBlocksAfterThreshold(t *testing.T) {
	classifier, classifierErr := NewClassifier(nil, nil)
	if classifierErr != nil {
		t.Fatalf("NewClassifier: %v", classifierErr)
	}
	fw := &recordingFirewall{}
	filter := NewFilter(classifier, fw, FilterSettings{
		MaxAttempts:       3,
		MaxSubnetAttempts: 100,
		Period:            time.Hour,
		BlockIPs:          true,
	}, nopLogger{})

	for i := 0; i < 3; i++ {
		filter.RecordAttempt("203.0.113.7")
	}
	if len(fw.blockedIPs) != 0 {
		t.Fatalf("blocked at threshold, want only above it: %v", fw.blockedIPs)
	}

	filter.RecordAttempt("203.0.113.7")
	if len(fw.blockedIPs) != 1 || fw.blockedIPs[0] != "203.0.113.7" {
		t.Fatalf("blockedIPs = %v, want [203.0.113.7]", fw.blockedIPs)
	}

	// Ledger entry cleared after blocking.
	if count := filter.Ledger().AddrCount("203.0.113.7"); count != 0 {
		t.Fatalf("AddrCount after block = %d, want 0", count)
	}
}

func TestFilterBlockDisabledStillClears(t *testing.T) {
	classifier, _ := NewClassifier(nil, nil)
	fw := &recordingFirewall{}
	filter := NewFilter(classifier, fw, FilterSettings{
		MaxAttempts:       1,
		MaxSubnetAttempts: 100,
		Period:            time.Hour,
		BlockIPs:          false,
	}, nopLogger{})

	filter.RecordAttempt("203.0.113.7")
	filter.RecordAttempt("203.0.113.7")
	if len(fw.blockedIPs) != 0 {
		t.Fatalf("firewall called with blocking disabled: %v", fw.blockedIPs)
	}
	if count := filter.Ledger().AddrCount("203.0.113.7"); count != 0 {
		t.Fatalf("AddrCount = %d, want 0 after threshold crossing", count)
	}
}

func TestFilterIgnoresTrusted(t *testing.T) {
	classifier, _ := NewClassifier([]string{"192.168.1.10"}, nil)
	fw := &recordingFirewall{}
	filter := NewFilter(classifier, fw, FilterSettings{
		MaxAttempts:       0,
		MaxSubnetAttempts: 0,
		Period:            time.Hour,
		BlockIPs:          true,
		BlockSubnets:      true,
	}, nopLogger{})

	for i := 0; i < 5; i++ {
		filter.RecordAttempt("192.168.1.10")
	}
	if len(fw.blockedIPs) != 0 || len(fw.blockedSubnets) != 0 {
		t.Fatalf("trusted address triggered blocking: %v %v", fw.blockedIPs, fw.blockedSubnets)
	}
}

func TestFilterSubnetBlocking(t *testing.T) {
	classifier, _ := NewClassifier(nil, nil)
	fw := &recordingFirewall{}
	filter := NewFilter(classifier, fw, FilterSettings{
		MaxAttempts:       100,
		MaxSubnetAttempts: 2,
		Period:            time.Hour,
		BlockSubnets:      true,
	}, nopLogger{})

	filter.RecordAttempt("203.0.113.1")
	filter.RecordAttempt("203.0.113.2")
	filter.RecordAttempt("203.0.113.3")
	if len(fw.blockedSubnets) != 1 || fw.blockedSubnets[0] != "203.0.113.0/24" {
		t.Fatalf("blockedSubnets = %v, want [203.0.113.0/24]", fw.blockedSubnets)
	}
}
