package docs

import (
	"fmt"
	"strings"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/format"
)

// HostGuide documents how status bars consume glucose-pulse output.
type HostGuide struct {
	Hosts []HostInfo
}

// HostInfo documents the integration for a single status bar or prompt.
type HostInfo struct {
	// Name is the host name (e.g., "Waybar").
	Name string

	// ConfigFile is where the snippet goes.
	ConfigFile string

	// Command is what the host runs.
	Command string

	// Clicks describes how mouse buttons reach the widget.
	Clicks string

	// Caveats lists known limitations.
	Caveats []string

	// Example is a complete config snippet.
	Example string

	// Lang is the code fence language for Example.
	Lang string
}

// GenerateHostGuide builds the status bar integration guide.
func GenerateHostGuide() *HostGuide {
	return &HostGuide{
		Hosts: []HostInfo{
			dcWaybarHost(),
			dcStarshipHost(),
			dcI3BlocksHost(),
			dcTmuxHost(),
		},
	}
}

// HostMarkdown renders the integration guide as Markdown.
func HostMarkdown() string {
	return dcRenderHostMarkdown(GenerateHostGuide())
}

func dcRenderHostMarkdown(g *HostGuide) string {
	var b strings.Builder
	b.WriteString("# Status Bar Integration\n\n")
	b.WriteString("Run `glucose-pulse daemon` (or `glucose-pulse service install`) so hosts read a cached state instead of polling Nightscout themselves.\n\n")

	for _, h := range g.Hosts {
		b.WriteString(fmt.Sprintf("## %s\n\n", h.Name))
		b.WriteString(fmt.Sprintf("**Config file:** `%s`\n\n", h.ConfigFile))
		b.WriteString(fmt.Sprintf("**Command:** `%s`\n\n", h.Command))
		if h.Clicks != "" {
			b.WriteString(fmt.Sprintf("**Clicks:** %s\n\n", h.Clicks))
		}
		if len(h.Caveats) > 0 {
			b.WriteString("**Caveats:**\n\n")
			for _, c := range h.Caveats {
				b.WriteString("- " + c + "\n")
			}
			b.WriteString("\n")
		}
		b.WriteString("```" + h.Lang + "\n")
		b.WriteString(h.Example)
		if !strings.HasSuffix(h.Example, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n\n")
	}
	return b.String()
}

// TokenMarkdown lists the placeholders label and tooltip templates accept.
func TokenMarkdown() string {
	desc := map[string]string{
		"sgv":                   "glucose in the configured units",
		"sgv_delta":             "change since the previous reading",
		"sgv_delta_signed":      "change with an explicit + when rising",
		"sgv_mgdl":              "glucose in mg/dl",
		"sgv_mmol":              "glucose in mmol/l",
		"direction":             "trend glyph from direction_icons",
		"direction_name":        "trend key, e.g. forty_five_up",
		"delta_time_in_minutes": "whole minutes since the reading",
		"time":                  "local time of the reading (HH:MM)",
		"units":                 "configured units",
		"stale":                 "\"stale\" when the reading is too old, else empty",
	}

	var b strings.Builder
	b.WriteString("# Template Tokens\n\n")
	b.WriteString("Unknown `{tokens}` are left as written. Before the first reading, numeric tokens render as `" + format.NoValue + "`.\n\n")
	b.WriteString("| Token | Meaning |\n")
	b.WriteString("|-------|---------|\n")
	for _, name := range format.Tokens() {
		d := desc[name]
		if d == "" {
			d = "-"
		}
		b.WriteString(fmt.Sprintf("| `{%s}` | %s |\n", name, d))
	}
	return b.String()
}

func dcWaybarHost() HostInfo {
	return HostInfo{
		Name:       "Waybar",
		ConfigFile: "~/.config/waybar/config.jsonc",
		Command:    "glucose-pulse waybar --watch",
		Clicks:     "waybar runs `glucose-pulse click <button>`, which forwards to the daemon.",
		Caveats: []string{
			"Use `return-type: json` so class and tooltip are applied.",
			"`<span>` markup in the label is passed through; plain outputs strip it.",
		},
		Lang: "jsonc",
		Example: `"custom/glucose": {
    "exec": "glucose-pulse waybar --watch",
    "return-type": "json",
    "on-click": "glucose-pulse click left",
    "on-click-middle": "glucose-pulse click middle",
    "on-click-right": "glucose-pulse click right"
}`,
	}
}

func dcStarshipHost() HostInfo {
	return HostInfo{
		Name:       "Starship",
		ConfigFile: "~/.config/starship.toml",
		Command:    "glucose-pulse starship",
		Caveats: []string{
			"Reads the cached state only, so the prompt never waits on the network.",
		},
		Lang: "toml",
		Example: `[custom.glucose]
command = "glucose-pulse starship"
when = true
format = "[$output]($style) "
`,
	}
}

func dcI3BlocksHost() HostInfo {
	return HostInfo{
		Name:       "i3blocks",
		ConfigFile: "~/.config/i3blocks/config",
		Command:    "glucose-pulse status --cached",
		Clicks:     "i3blocks exports BLOCK_BUTTON (1, 2, 3); map it to `glucose-pulse click`.",
		Lang:       "ini",
		Example: `[glucose]
command=[ -n "$BLOCK_BUTTON" ] && glucose-pulse click $BLOCK_BUTTON >/dev/null; glucose-pulse status --cached
interval=30
`,
	}
}

func dcTmuxHost() HostInfo {
	return HostInfo{
		Name:       "tmux",
		ConfigFile: "~/.tmux.conf",
		Command:    "glucose-pulse status --cached",
		Lang:       "sh",
		Example: `set -g status-interval 30
set -g status-right '#(glucose-pulse status --cached)'
`,
	}
}
