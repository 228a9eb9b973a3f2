package daemon_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"cellar/internal/api"
	"cellar/internal/daemon"
	"cellar/internal/logging"
	"cellar/internal/testsupport"
)

func startDaemon(t *testing.T, token string) (*daemon.Daemon, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = token
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	st := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("daemon started without an API listener")
	}
	return d, addr
}

func TestDaemonLifecycle(t *testing.T) {
	d, _ := startDaemon(t, "")

	status := d.Status()
	if !status.Running {
		t.Fatal("status reports the daemon stopped")
	}
	if status.StoreLocation == "" {
		t.Fatal("status omits the store location")
	}

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start on a running daemon succeeded")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("status reports the daemon running after Stop")
	}
	// Stop again must be a no-op.
	d.Stop()
}

func TestAPIRecordRoundTrip(t *testing.T) {
	_, addr := startDaemon(t, "")
	client := api.NewClient(addr, "")
	ctx := context.Background()

	record, err := client.PutRecord(ctx, "city/oslo", []byte("59.91,10.75"))
	if err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
	if record.Revision == "" {
		t.Fatal("PutRecord returned an empty revision")
	}

	got, err := client.GetRecord(ctx, "city/oslo")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got == nil || !bytes.Equal(got.Value, []byte("59.91,10.75")) {
		t.Fatalf("GetRecord = %+v", got)
	}

	records, err := client.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 1 || records[0].Key != "city/oslo" {
		t.Fatalf("ListRecords = %+v", records)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Records != 1 {
		t.Fatalf("Status = %+v", status)
	}

	existed, err := client.DeleteRecord(ctx, "city/oslo")
	if err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if !existed {
		t.Fatal("DeleteRecord reported the record missing")
	}

	got, err = client.GetRecord(ctx, "city/oslo")
	if err != nil {
		t.Fatalf("GetRecord after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("record still present after delete: %+v", got)
	}

	existed, err = client.DeleteRecord(ctx, "city/oslo")
	if err != nil {
		t.Fatalf("second DeleteRecord: %v", err)
	}
	if existed {
		t.Fatal("second DeleteRecord reported the record present")
	}
}

func TestAPIRequiresToken(t *testing.T) {
	_, addr := startDaemon(t, "sekrit")
	ctx := context.Background()

	unauthorized := api.NewClient(addr, "")
	if _, err := unauthorized.Status(ctx); err == nil {
		t.Fatal("request without token succeeded")
	}

	wrong := api.NewClient(addr, "guess")
	if _, err := wrong.Status(ctx); err == nil {
		t.Fatal("request with wrong token succeeded")
	}

	authorized := api.NewClient(addr, "sekrit")
	if _, err := authorized.Status(ctx); err != nil {
		t.Fatalf("authorized Status: %v", err)
	}

	// Health probes stay open regardless of the token.
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestSecondDaemonInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	t.Cleanup(first.Stop)

	second, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New (second): %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon instance acquired the lock")
	}
}

func TestAPIDisabledWithoutBindAddress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	if addr := d.APIAddr(); addr != "" {
		t.Fatalf("APIAddr = %q for a disabled API", addr)
	}
}
