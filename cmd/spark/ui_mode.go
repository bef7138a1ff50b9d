package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// uiMode is the --ui setting: auto picks the TUI only on a terminal.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	m := uiMode(strings.ToLower(strings.TrimSpace(value)))
	switch m {
	case "":
		return uiModeAuto, nil
	case uiModeAuto, uiModeOn, uiModeOff:
		return m, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// useTUI resolves the mode against stdout.
func (m uiMode) useTUI() bool {
	if m == uiModeAuto {
		return isTerminal(os.Stdout)
	}
	return m == uiModeOn
}

func uiModeFlag(cmd *cobra.Command) (uiMode, error) {
	v, err := cmd.Flags().GetString("ui")
	if err != nil {
		return "", err
	}
	return readUIMode(v)
}
