package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubConnector struct {
	existing  map[string]bool
	connected []string
	failFor   string
}

func connKey(addr uint32, port uint16) string {
	return fmt.Sprintf("%d:%d", addr, port)
}

func (c *stubConnector) ConnectionExists(addr uint32, port uint16) bool {
	return c.existing[connKey(addr, port)]
}

func (c *stubConnector) Connect(_ context.Context, d *RelayDescriptor) error {
	if d.Address == c.failFor {
		return errors.New("dial failed")
	}
	c.connected = append(c.connected, d.Address)
	return nil
}

func TestRegistryInstallAndSnapshot(t *testing.T) {
	reg := NewRegistry(nil, nil)
	if _, err := reg.Snapshot(); err == nil {
		t.Fatal("want error before any Install")
	}

	k := &genKey(t).PublicKey
	dir := &Directory{Routers: []*RelayDescriptor{
		{Address: "r1", Addr: 1, ORPort: 9001, IdentityKey: k},
	}}
	reg.Install(dir)

	got, err := reg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got != dir {
		t.Error("Snapshot did not return the installed directory")
	}

	// Re-installing replaces the previous directory wholesale.
	dir2 := &Directory{}
	reg.Install(dir2)
	got, _ = reg.Snapshot()
	if got != dir2 {
		t.Error("second Install did not replace the directory")
	}
}

func TestRegistryFindByAddrPortAndPublicKey(t *testing.T) {
	k1 := &genKey(t).PublicKey
	k2 := &genKey(t).PublicKey
	reg := NewRegistry(nil, nil)
	reg.Install(&Directory{Routers: []*RelayDescriptor{
		{Address: "r1", Addr: 1, ORPort: 9001, IdentityKey: k1},
		{Address: "r2", Addr: 2, ORPort: 9002, IdentityKey: k2},
	}})

	d, ok := reg.FindByAddrPort(1, 9001)
	if !ok || d.Address != "r1" {
		t.Fatalf("FindByAddrPort(1, 9001) = %+v, %v", d, ok)
	}

	d, ok = reg.FindByPublicKey(k2)
	if !ok || d.Address != "r2" {
		t.Fatalf("FindByPublicKey(k2) = %+v, %v", d, ok)
	}

	if _, ok := reg.FindByAddrPort(99, 1); ok {
		t.Error("FindByAddrPort matched a nonexistent router")
	}
}

func TestRegistryPickDirectoryServer(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Install(&Directory{Routers: []*RelayDescriptor{
		{Address: "r1", DirPort: 0},
		{Address: "r2", DirPort: 9030},
	}})

	d, ok := reg.PickDirectoryServer()
	if !ok || d.Address != "r2" {
		t.Fatalf("PickDirectoryServer = %+v, %v", d, ok)
	}
}

func TestRegistryPickDirectoryServerNoneAvailable(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Install(&Directory{Routers: []*RelayDescriptor{
		{Address: "r1", DirPort: 0},
	}})
	if _, ok := reg.PickDirectoryServer(); ok {
		t.Error("want no directory server available")
	}
}

func TestRegistryForgetRemovesAndDecrementsCount(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Install(&Directory{Routers: []*RelayDescriptor{
		{Address: "r1", Addr: 1, ORPort: 9001},
		{Address: "r2", Addr: 2, ORPort: 9002},
		{Address: "r3", Addr: 3, ORPort: 9003},
	}})

	if ok := reg.Forget(2, 9002); !ok {
		t.Fatal("Forget(2, 9002) = false, want true")
	}

	dir, _ := reg.Snapshot()
	if len(dir.Routers) != 2 {
		t.Fatalf("routers = %d, want 2 after Forget", len(dir.Routers))
	}
	for _, d := range dir.Routers {
		if d.Address == "r2" {
			t.Error("r2 still present after Forget")
		}
	}

	if ok := reg.Forget(999, 1); ok {
		t.Error("Forget on nonexistent router returned true")
	}
}

func TestRegistryRetryConnections(t *testing.T) {
	conn := &stubConnector{
		existing: map[string]bool{connKey(1, 9001): true},
		failFor:  "r3",
	}
	reg := NewRegistry(conn, nil)
	reg.Install(&Directory{Routers: []*RelayDescriptor{
		{Address: "r1", Addr: 1, ORPort: 9001},
		{Address: "r2", Addr: 2, ORPort: 9002},
		{Address: "r3", Addr: 3, ORPort: 9003},
	}})

	err := reg.RetryConnections(context.Background())
	if err == nil {
		t.Fatal("want error surfaced from the failing connect to r3")
	}
	if len(conn.connected) != 1 || conn.connected[0] != "r2" {
		t.Fatalf("connected = %v, want only r2 (r1 already open, r3 failed)", conn.connected)
	}
}

func TestRegistryRetryConnectionsNoConnectorConfigured(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.Install(&Directory{})
	if err := reg.RetryConnections(context.Background()); err == nil {
		t.Fatal("want error when no connector is configured")
	}
}

func TestRegistryCheckExitPolicyNoLocalRouter(t *testing.T) {
	reg := NewRegistry(nil, nil)
	if reg.CheckExitPolicy(80) {
		t.Error("want reject when no local router identity is installed")
	}
}

func TestRegistryCheckExitPolicyWithLocalRouter(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.SetLocalRouter(&RelayDescriptor{
		ExitPolicy: []ExitPolicyRule{
			{Kind: PolicyReject, Port: "25"},
			{Kind: PolicyAccept, Port: "80"},
		},
	})

	if reg.CheckExitPolicy(25) {
		t.Error("port 25 should be rejected")
	}
	if !reg.CheckExitPolicy(80) {
		t.Error("port 80 should be accepted")
	}
	if reg.LocalRouter() == nil {
		t.Error("LocalRouter should return the descriptor set by SetLocalRouter")
	}
}
