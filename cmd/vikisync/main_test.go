package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCommand()
	expected := []string{"sync", "match", "matches", "status", "undo", "config", "test-notify"}
	for _, name := range expected {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestMatchCommandRegistersManualOverrides(t *testing.T) {
	cmd := newRootCommand()
	var match *cobra.Command
	for _, sub := range cmd.Commands() {
		if sub.Name() == "match" {
			match = sub
			break
		}
	}
	if match == nil {
		t.Fatal("match command missing")
	}
	for _, name := range []string{"set", "clear"} {
		found := false
		for _, sub := range match.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("match is missing the %q subcommand", name)
		}
	}
}

func TestRootCommandHelpDoesNotLoadConfig(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected help output")
	}
}
