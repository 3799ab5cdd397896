package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetErr(&buf)
	RootCmd.SetArgs([]string{"--help"})

	err := RootCmd.Execute()
	if err != nil {
		t.Errorf("root command with --help failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "PostgreSQL schema comparison tool") {
		t.Errorf("expected help output to contain description, got: %s", output)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	commands := RootCmd.Commands()

	expectedCommands := []string{"compare", "version"}
	for _, expected := range expectedCommands {
		found := false
		for _, cmd := range commands {
			if cmd.Name() == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", expected)
		}
	}
}
