package conversation

import (
	"fmt"
	"os"

	"github.com/andyleap/donna/internal/calendar"
	"github.com/andyleap/donna/internal/generation"
	"gopkg.in/yaml.v3"
)

const (
	ToolTodayEvents = "get_today_events"
	ToolWeekEvents  = "get_week_events"
)

var toolKinds = map[string]calendar.Kind{
	ToolTodayEvents: calendar.Today,
	ToolWeekEvents:  calendar.Week,
}

// Profile is the assistant's persona and model selection.
type Profile struct {
	Model        string `yaml:"model"`
	Instructions string `yaml:"instructions"`
	// ToolDescriptions overrides the description of a catalog tool by name.
	ToolDescriptions map[string]string `yaml:"tool_descriptions"`
}

func DefaultProfile() Profile {
	return Profile{
		Model: "gpt-5-mini",
		Instructions: "You are Donna, a helpful AI personal assistant. You're integrated with a Telegram bot " +
			"that can help users with calendar management and general questions. Be friendly and concise in your responses.",
		ToolDescriptions: map[string]string{
			ToolTodayEvents: "Get all calendar events scheduled for today",
			ToolWeekEvents:  "Get all calendar events scheduled for this week (Monday to Sunday)",
		},
	}
}

// LoadProfile reads a YAML profile from path on top of the defaults.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read assistant profile: %w", err)
	}

	var overlay Profile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return profile, fmt.Errorf("failed to parse assistant profile: %w", err)
	}
	if overlay.Model != "" {
		profile.Model = overlay.Model
	}
	if overlay.Instructions != "" {
		profile.Instructions = overlay.Instructions
	}
	for name, desc := range overlay.ToolDescriptions {
		if _, ok := toolKinds[name]; !ok {
			return profile, fmt.Errorf("assistant profile describes unknown tool %q", name)
		}
		profile.ToolDescriptions[name] = desc
	}
	return profile, nil
}

// Tools returns the calendar tool catalog in a stable order.
func (p Profile) Tools() []generation.Tool {
	return []generation.Tool{
		{Name: ToolTodayEvents, Description: p.ToolDescriptions[ToolTodayEvents]},
		{Name: ToolWeekEvents, Description: p.ToolDescriptions[ToolWeekEvents]},
	}
}
