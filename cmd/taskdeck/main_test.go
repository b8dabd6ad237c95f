package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/taskdeck/taskdeck/internal/config"
	"github.com/taskdeck/taskdeck/internal/mcp"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/toolhost"
	"github.com/taskdeck/taskdeck/internal/tools"
)

func TestBuildTransportMountedHostIsInProcess(t *testing.T) {
	cfg := config.Default()
	host := toolhost.NewServer(nil, tools.NewRegistry(), nil)

	tr, err := buildTransport(cfg, host, nil)
	if err != nil {
		t.Fatalf("buildTransport: %v", err)
	}
	if _, ok := tr.(*toolhost.LocalTransport); !ok {
		t.Fatalf("transport = %T, want *toolhost.LocalTransport", tr)
	}
}

func TestBuildTransportRequiresURLWithoutMount(t *testing.T) {
	cfg := config.Default()
	cfg.ToolHost.Mount = false

	if _, err := buildTransport(cfg, nil, nil); err == nil {
		t.Fatal("expected an error with no url and no mounted host")
	}
}

func TestBuildTransportStdioRequiresCommand(t *testing.T) {
	cfg := config.Default()
	cfg.ToolHost.Transport = "stdio"

	if _, err := buildTransport(cfg, nil, nil); err == nil {
		t.Fatal("expected an error with no command")
	}
}

// The embedded-host session must come up ready with no listener in
// sight: serve's startup order cannot be allowed to matter for it.
func TestMountedSessionReadyBeforeListener(t *testing.T) {
	store, err := task.OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	registry := tools.NewRegistry()
	host := toolhost.NewServer(store, registry, nil)

	tr, err := buildTransport(config.Default(), host, nil)
	if err != nil {
		t.Fatalf("buildTransport: %v", err)
	}

	session := mcp.NewSession(mcp.NewClient("tasks", tr, nil), nil)
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !session.IsReady() {
		t.Fatalf("session state = %v, want ready", session.State())
	}
}
