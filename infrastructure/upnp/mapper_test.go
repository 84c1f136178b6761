package upnp

import (
	"errors"
	"testing"
)

type fakeIGD struct {
	mapped     []uint16
	externalIP string
	mapErr     error
}

func (f *fakeIGD) AddPortMapping(_ string, externalPort uint16, protocol string,
	_ uint16, _ string, enabled bool, _ string, _ uint32) error {
	if f.mapErr != nil {
		return f.mapErr
	}
	if protocol != "TCP" || !enabled {
		return errors.New("unexpected mapping request")
	}
	f.mapped = append(f.mapped, externalPort)
	return nil
}

func (f *fakeIGD) GetExternalIPAddress() (string, error) {
	return f.externalIP, nil
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func TestMapperRequestsMapping(t *testing.T) {
	igd := &fakeIGD{externalIP: "203.0.113.50"}
	mapper := NewMapper(nopLogger{})
	mapper.discover = func() (igdClient, error) { return igd, nil }

	mapping, mapErr := mapper.Map(9999, "192.168.1.20", "ucibridge stockfish", 3600)
	if mapErr != nil {
		t.Fatalf("Map: %v", mapErr)
	}
	if mapping.ExternalIP != "203.0.113.50" || mapping.ExternalPort != 9999 {
		t.Fatalf("mapping = %+v", mapping)
	}
	if len(igd.mapped) != 1 || igd.mapped[0] != 9999 {
		t.Fatalf("mapped ports = %v", igd.mapped)
	}
}

func TestMapperNoGateway(t *testing.T) {
	mapper := NewMapper(nopLogger{})
	mapper.discover = func() (igdClient, error) { return nil, errors.New("timeout") }

	if _, mapErr := mapper.Map(9999, "192.168.1.20", "desc", 3600); mapErr == nil {
		t.Fatal("expected error without a gateway")
	}
}
