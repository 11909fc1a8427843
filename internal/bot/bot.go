// Package bot implements the chat commands independent of any transport.
// Every command produces a plain-text reply.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andyleap/donna/internal/calendar"
	"github.com/andyleap/donna/internal/conversation"
	"github.com/andyleap/donna/internal/models"
)

const (
	msgGenericError     = "Sorry, I encountered an error processing your message. Please try again later."
	msgConnectError     = "Sorry, there was an error setting up calendar connection.\n\nPlease check that the bot is properly configured and try again later."
	msgNotConnected     = "No calendar is currently connected."
	msgAlreadyConnected = "Your Google Calendar is already connected!\n\nUse /calendar_status to see connection details or /today to view your calendar."
	msgDisconnected     = "Calendar disconnected successfully.\n\nYour calendar data has been removed from our database. Use /connect_calendar if you want to reconnect later."
	msgUnknownCommand   = "Unknown command. Use /help to see what I can do."
)

const commandList = "/start - Show the welcome message\n" +
	"/help - Get help and information\n" +
	"/connect_calendar - Connect your Google Calendar\n" +
	"/calendar_status - Check calendar connection status\n" +
	"/today - View today's events\n" +
	"/week - View this week's events\n" +
	"/disconnect_calendar - Disconnect your calendar"

// Accounts is the slice of the token store the commands use.
type Accounts interface {
	Register(ctx context.Context, profile models.Profile) (bool, error)
	CountUsers(ctx context.Context) (int, error)
	IsConnected(ctx context.Context, userID int64) (bool, error)
	Disconnect(ctx context.Context, userID int64) error
}

type Authorizer interface {
	AuthorizationTarget(userID int64) string
}

type CalendarFetcher interface {
	Today(ctx context.Context, userID int64) (calendar.Result, error)
	Week(ctx context.Context, userID int64) (calendar.Result, error)
}

type Conversations interface {
	Turn(ctx context.Context, in conversation.TurnInput) (conversation.Output, error)
}

type Commands struct {
	accounts      Accounts
	auth          Authorizer
	calendar      CalendarFetcher
	conversations Conversations
}

func NewCommands(accounts Accounts, auth Authorizer, fetcher CalendarFetcher, conversations Conversations) *Commands {
	return &Commands{
		accounts:      accounts,
		auth:          auth,
		calendar:      fetcher,
		conversations: conversations,
	}
}

// Handle routes one incoming message to its command, or to the assistant
// when it is not a command.
func (c *Commands) Handle(ctx context.Context, profile models.Profile, text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return c.Message(ctx, profile, text)
	}

	command := strings.Fields(text)[0]
	// Group chats address commands as /cmd@botname.
	command, _, _ = strings.Cut(command, "@")

	switch command {
	case "/start":
		return c.Start(ctx, profile)
	case "/help":
		return c.Help()
	case "/connect_calendar":
		return c.ConnectCalendar(ctx, profile.ID)
	case "/calendar_status":
		return c.CalendarStatus(ctx, profile.ID)
	case "/today":
		return c.Events(ctx, profile.ID, calendar.Today)
	case "/week":
		return c.Events(ctx, profile.ID, calendar.Week)
	case "/disconnect_calendar":
		return c.DisconnectCalendar(ctx, profile.ID)
	default:
		return msgUnknownCommand
	}
}

// Start registers the user and welcomes them.
func (c *Commands) Start(ctx context.Context, profile models.Profile) string {
	isNew, err := c.accounts.Register(ctx, profile)
	if err != nil {
		slog.Error("Failed to register user", "user_id", profile.ID, "error", err)
		return msgGenericError
	}
	total, err := c.accounts.CountUsers(ctx)
	if err != nil {
		slog.Error("Failed to count users", "error", err)
		return msgGenericError
	}

	welcome := fmt.Sprintf("Welcome back %s!", profile.DisplayName())
	if isNew {
		welcome = fmt.Sprintf("Welcome %s! You've been registered successfully.", profile.DisplayName())
	}
	return welcome + "\n\n" +
		"I'm Donna, your AI personal assistant. I'm here to help you with various tasks.\n\n" +
		fmt.Sprintf("Total registered users: %d\n\n", total) +
		"Available commands:\n" + commandList
}

func (c *Commands) Help() string {
	return "Donna Bot Help\n\n" +
		"I'm an AI assistant powered by OpenAI. Here's what I can do:\n\n" +
		"• Answer questions\n" +
		"• Help with various tasks\n" +
		"• Show your Google Calendar events\n\n" +
		"Commands:\n" + commandList + "\n\n" +
		"Just send me any message and I'll try to help!"
}

// ConnectCalendar returns the link that starts the authorization handshake.
func (c *Commands) ConnectCalendar(ctx context.Context, userID int64) string {
	connected, err := c.accounts.IsConnected(ctx, userID)
	if err != nil {
		slog.Error("Failed to check calendar connection", "user_id", userID, "error", err)
		return msgConnectError
	}
	if connected {
		return msgAlreadyConnected
	}

	link := c.auth.AuthorizationTarget(userID)
	slog.Info("Calendar connection link issued", "user_id", userID)
	return "Connect Your Google Calendar\n\n" +
		"To connect your Google Calendar, please:\n" +
		"1. Open the link below\n" +
		"2. Sign in with your Google account\n" +
		"3. Grant calendar permissions\n" +
		"4. You'll be redirected to a success page\n\n" +
		link
}

func (c *Commands) CalendarStatus(ctx context.Context, userID int64) string {
	connected, err := c.accounts.IsConnected(ctx, userID)
	if err != nil {
		slog.Error("Failed to check calendar connection", "user_id", userID, "error", err)
		return msgGenericError
	}
	if connected {
		return "Calendar Status: Connected\n\n" +
			"Your Google Calendar is connected and ready to use!\n\n" +
			"Available commands:\n" +
			"/today - View today's events\n" +
			"/week - View this week's events\n" +
			"/disconnect_calendar - Disconnect calendar"
	}
	return "Calendar Status: Not Connected\n\n" +
		"Your Google Calendar is not connected.\n\n" +
		"Use /connect_calendar to set up the connection."
}

// Events renders today's or this week's events.
func (c *Commands) Events(ctx context.Context, userID int64, kind calendar.Kind) string {
	fetch := c.calendar.Today
	if kind == calendar.Week {
		fetch = c.calendar.Week
	}
	res, err := fetch(ctx, userID)
	if err != nil {
		slog.Error("Failed to fetch events", "user_id", userID, "range", kind, "error", err)
	}
	return res.Text()
}

// DisconnectCalendar removes the stored credential. Users without a
// connection are told so and nothing is written.
func (c *Commands) DisconnectCalendar(ctx context.Context, userID int64) string {
	connected, err := c.accounts.IsConnected(ctx, userID)
	if err != nil {
		slog.Error("Failed to check calendar connection", "user_id", userID, "error", err)
		return msgGenericError
	}
	if !connected {
		return msgNotConnected
	}
	if err := c.accounts.Disconnect(ctx, userID); err != nil {
		slog.Error("Failed to disconnect calendar", "user_id", userID, "error", err)
		return "Error disconnecting calendar. Please try again."
	}
	return msgDisconnected
}

// Message hands free text to the assistant.
func (c *Commands) Message(ctx context.Context, profile models.Profile, text string) string {
	if text == "" {
		return c.Help()
	}
	out, err := c.conversations.Turn(ctx, conversation.TurnInput{
		UserID:   profile.ID,
		Username: profile.Username,
		Text:     text,
	})
	if err != nil {
		slog.Error("Failed to handle message", "user_id", profile.ID, "error", err)
		return msgGenericError
	}
	return out.Text
}
