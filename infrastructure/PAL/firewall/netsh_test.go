package firewall

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// fakeCommander records invocations and serves scripted outputs keyed by a
// distinguishing argument substring.
type fakeCommander struct {
	calls   [][]string
	outputs map[string]string
	errors  map[string]error
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		outputs: make(map[string]string),
		errors:  make(map[string]error),
	}
}

func (c *fakeCommander) CombinedOutput(name string, args ...string) ([]byte, error) {
	joined := name + " " + strings.Join(args, " ")
	c.calls = append(c.calls, append([]string{name}, args...))
	for key, failure := range c.errors {
		if strings.Contains(joined, key) {
			return nil, failure
		}
	}
	for key, output := range c.outputs {
		if strings.Contains(joined, key) {
			return []byte(output), nil
		}
	}
	return nil, nil
}

func (c *fakeCommander) invoked(fragment string) bool {
	for _, call := range c.calls {
		if strings.Contains(strings.Join(call, " "), fragment) {
			return true
		}
	}
	return false
}

func TestBlockIPCreatesRuleOnFirstUse(t *testing.T) {
	commander := newFakeCommander()
	commander.errors["show rule"] = errors.New("no rules match")

	fw := NewNetsh(commander, nopLogger{})
	require.NoError(t, fw.BlockIP("203.0.113.7", "9999"))

	assert.True(t, commander.invoked("add rule name="+blockIPsRule))
	assert.True(t, commander.invoked("remoteip=203.0.113.7"))
	assert.True(t, commander.invoked("localport=9999"))
}

func TestBlockIPAppendsToExistingRule(t *testing.T) {
	commander := newFakeCommander()
	commander.outputs["show rule"] = "Rule Name: x\nRemoteIP: 198.51.100.2\n"

	fw := NewNetsh(commander, nopLogger{})
	require.NoError(t, fw.BlockIP("203.0.113.7", "9999"))

	assert.True(t, commander.invoked("set rule name="+blockIPsRule))
	assert.True(t, commander.invoked("remoteip=198.51.100.2,203.0.113.7"))
}

func TestBlockIPAlreadyBlockedIsIdempotent(t *testing.T) {
	commander := newFakeCommander()
	commander.outputs["show rule"] = "RemoteIP: 203.0.113.7\n"

	fw := NewNetsh(commander, nopLogger{})
	require.NoError(t, fw.BlockIP("203.0.113.7", "9999"))

	assert.False(t, commander.invoked("set rule"))
	assert.False(t, commander.invoked("add rule"))
}

func TestBlockIPSkipsNonGlobal(t *testing.T) {
	commander := newFakeCommander()
	fw := NewNetsh(commander, nopLogger{})

	require.NoError(t, fw.BlockIP("192.168.1.5", "9999"))
	require.NoError(t, fw.BlockIP("127.0.0.1", "9999"))
	assert.Empty(t, commander.calls, "private and loopback addresses never reach netsh")
}

func TestBlockIPRejectsInvalid(t *testing.T) {
	fw := NewNetsh(newFakeCommander(), nopLogger{})
	assert.Error(t, fw.BlockIP("not-an-ip", "9999"))
}

func TestUnblockTrustedRemovesEntries(t *testing.T) {
	commander := newFakeCommander()
	commander.outputs["show rule"] = "RemoteIP: 203.0.113.7,198.51.100.2\n"

	fw := NewNetsh(commander, nopLogger{})
	require.NoError(t, fw.UnblockTrusted([]string{"203.0.113.7"}, nil))

	assert.True(t, commander.invoked("remoteip=198.51.100.2"))
}

func TestConfigureBlocksComputedSubnets(t *testing.T) {
	commander := newFakeCommander()
	fw := NewNetsh(commander, nopLogger{})

	require.NoError(t, fw.Configure("9999,10000", []string{"8.8.8.8"}, nil))

	assert.True(t, commander.invoked("delete rule name="+blockOtherRule))
	assert.True(t, commander.invoked("add rule name="+blockOtherRule))
	assert.True(t, commander.invoked("localport=9999,10000"))
}

func TestSelectReturnsNoopWhenDisabled(t *testing.T) {
	fw := Select(false, nopLogger{})
	_, isNoop := fw.(*Noop)
	assert.True(t, isNoop)
}
