package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"weekly-menu-planner/internal/config"
	"weekly-menu-planner/internal/grocery"
	"weekly-menu-planner/internal/logger"
	"weekly-menu-planner/internal/metrics"
	"weekly-menu-planner/internal/recipe"
	"weekly-menu-planner/internal/selector"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	handlerTimeout = 2 * time.Minute
	maxMessageLen  = 4096
)

// Controller is the part of the selection controller the bot drives.
type Controller interface {
	Load(ctx context.Context, fresh bool) error
	Toggle(ctx context.Context, id string) (selector.ToggleResult, error)
	ApplyFilters(criteria recipe.Criteria) []recipe.Recipe
	RequestGroceryList(ctx context.Context) (*grocery.List, error)
	CloseGroceryList()
	Snapshot() selector.View
}

// sender is the subset of *tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type (
	commandHandler  func(ctx context.Context, b *Bot, args string)
	callbackHandler func(ctx context.Context, b *Bot, arg string)
)

// Bot serves one allowed user through a Telegram chat. It is also the
// controller's surface: state changes are drawn as a single board message
// that is edited in place.
type Bot struct {
	api          sender
	ctl          Controller
	metricsStore *metrics.Store
	dataDir      string
	chatID       int64
	log          logger.Logger

	commands  map[string]commandHandler
	callbacks map[string]callbackHandler

	mu      sync.Mutex
	boardID int
}

// NewBot authorizes against the Telegram API and sets the webhook.
func NewBot(cfg *config.Config, log logger.Logger) (*Bot, *tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Info("Authorized on account", logger.String("username", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build webhook for %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Info("Webhook set", logger.String("description", resp.Description))

	return newBot(api, cfg.TelegramAllowUserID, log), api, nil
}

// newBot builds a bot around an API client. The allowed user's id doubles as
// the private chat id.
func newBot(api sender, allowUserID int64, log logger.Logger) *Bot {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bot{
		api:       api,
		chatID:    allowUserID,
		dataDir:   "data",
		log:       log,
		commands:  commandHandlers(),
		callbacks: callbackHandlers(),
	}
}

// Attach binds the controller. It must be called before serving updates.
func (b *Bot) Attach(ctl Controller) { b.ctl = ctl }

// WithMetrics enables the /metrics report.
func (b *Bot) WithMetrics(store *metrics.Store, dataDir string) {
	b.metricsStore = store
	b.dataDir = dataDir
}

func commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		"start": func(ctx context.Context, b *Bot, _ string) {
			b.sendHelp()
			b.load(ctx, false)
		},
		"help": func(_ context.Context, b *Bot, _ string) { b.sendHelp() },
		"suggest": func(ctx context.Context, b *Bot, _ string) {
			b.load(ctx, false)
		},
		"fresh": func(ctx context.Context, b *Bot, _ string) {
			b.load(ctx, true)
		},
		"menu": func(_ context.Context, b *Bot, _ string) {
			b.resetBoard()
			b.Render(b.ctl.Snapshot())
		},
		"filter":  func(_ context.Context, b *Bot, args string) { b.handleFilter(args) },
		"grocery": func(ctx context.Context, b *Bot, _ string) { b.requestGrocery(ctx) },
		"metrics": func(ctx context.Context, b *Bot, _ string) { b.handleMetricsCommand(ctx) },
	}
}

func callbackHandlers() map[string]callbackHandler {
	return map[string]callbackHandler{
		"toggle": func(ctx context.Context, b *Bot, id string) {
			// Rejections reach the chat through Notify.
			_, _ = b.ctl.Toggle(ctx, id)
		},
		"fresh":   func(ctx context.Context, b *Bot, _ string) { b.load(ctx, true) },
		"grocery": func(ctx context.Context, b *Bot, _ string) { b.requestGrocery(ctx) },
		"close":   func(_ context.Context, b *Bot, _ string) { b.ctl.CloseGroceryList() },
		"clear": func(_ context.Context, b *Bot, _ string) {
			b.ctl.ApplyFilters(recipe.Criteria{})
		},
	}
}

// RegisterHandlers registers the webhook and health endpoints on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.log.Warn("Error parsing update", logger.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	go b.handleUpdate(update)
}

// handleUpdate routes one update. Updates from anyone but the allowed user are dropped.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if !b.allowed(q.From) {
			return
		}
		b.api.Request(tgbotapi.NewCallback(q.ID, ""))
		name, arg, _ := strings.Cut(q.Data, "|")
		if h, ok := b.callbacks[name]; ok {
			h(ctx, b, arg)
		}

	case update.Message != nil:
		msg := update.Message
		if !b.allowed(msg.From) {
			return
		}
		if !msg.IsCommand() {
			b.sendHelp()
			return
		}
		h, ok := b.commands[msg.Command()]
		if !ok {
			b.sendText(fmt.Sprintf("Unknown command /%s", msg.Command()))
			return
		}
		h(ctx, b, msg.CommandArguments())
	}
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if from == nil || from.ID != b.chatID {
		if from != nil {
			b.log.Warn("Unauthorized access attempt",
				logger.String("username", from.UserName),
				logger.String("user_id", fmt.Sprint(from.ID)))
		}
		return false
	}
	return true
}

func (b *Bot) load(ctx context.Context, fresh bool) {
	b.resetBoard()
	if err := b.ctl.Load(ctx, fresh); err != nil {
		b.log.Warn("Load aborted", logger.Error(err))
	}
}

func (b *Bot) requestGrocery(ctx context.Context) {
	list, err := b.ctl.RequestGroceryList(ctx)
	if err != nil {
		if !errors.Is(err, selector.ErrSelectionIncomplete) {
			b.log.Warn("Grocery list request failed", logger.Error(err))
		}
		return
	}
	for _, part := range chunk(list.Text(), maxMessageLen) {
		b.sendText(part)
	}

	data, err := list.XLSX()
	if err != nil {
		b.log.Warn("Failed to build spreadsheet", logger.Error(err))
		return
	}
	doc := tgbotapi.NewDocument(b.chatID, tgbotapi.FileBytes{
		Name:  list.FileName(string(grocery.FormatXLSX)),
		Bytes: data,
	})
	if _, err := b.api.Send(doc); err != nil {
		b.log.Warn("Failed to send spreadsheet", logger.Error(err))
	}
}

// handleFilter parses "/filter protein chicken" or "/filter clear".
func (b *Bot) handleFilter(args string) {
	fields := strings.Fields(strings.ToLower(args))
	criteria := b.ctl.Snapshot().Filters
	switch {
	case len(fields) == 1 && fields[0] == "clear":
		criteria = recipe.Criteria{}
	case len(fields) >= 2:
		value := strings.Join(fields[1:], " ")
		if value == "any" {
			value = ""
		}
		switch fields[0] {
		case "protein":
			criteria.Protein = value
		case "cuisine":
			criteria.Cuisine = value
		case "method":
			criteria.CookingMethod = value
		default:
			b.sendText("Usage: /filter protein|cuisine|method <value|any>, or /filter clear")
			return
		}
	default:
		b.sendText("Usage: /filter protein|cuisine|method <value|any>, or /filter clear")
		return
	}
	b.ctl.ApplyFilters(criteria)
}

func (b *Bot) handleMetricsCommand(ctx context.Context) {
	if b.metricsStore == nil {
		b.sendText("Metrics are not enabled.")
		return
	}
	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		b.log.Error("Failed to fetch metrics", logger.Error(err))
		b.sendText("❌ Error fetching metrics.")
		return
	}
	msg := tgbotapi.NewMessage(b.chatID, formatMetrics(usage, metrics.GetSysHealth(b.dataDir)))
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.api.Send(msg)
}

func (b *Bot) sendHelp() {
	b.sendText(strings.Join([]string{
		"Pick 4 recipes for the week and get a combined grocery list.",
		"",
		"/suggest - show this week's suggestions",
		"/fresh - generate fresh recipes",
		"/menu - show the board again",
		"/filter protein|cuisine|method <value|any> - narrow the suggestions",
		"/grocery - build the grocery list",
		"/metrics - recent service calls",
	}, "\n"))
}

func (b *Bot) sendText(text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		b.log.Warn("Failed to send message", logger.Error(err))
	}
}

func (b *Bot) resetBoard() {
	b.mu.Lock()
	b.boardID = 0
	b.mu.Unlock()
}

// Render draws v on the board message, posting a new one when none exists.
func (b *Bot) Render(v selector.View) {
	text, keyboard := formatBoard(v)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.boardID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(b.chatID, b.boardID, text, keyboard)
		edit.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(edit); err == nil || strings.Contains(err.Error(), "message is not modified") {
			return
		}
	}
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Warn("Failed to send board", logger.Error(err))
		return
	}
	b.boardID = sent.MessageID
}

func (b *Bot) Notify(n selector.Notification) {
	b.sendText(levelIcon(n.Level) + " " + n.Message)
}

func (b *Bot) SetLoading(_ string, loading bool) {
	if loading {
		b.api.Request(tgbotapi.NewChatAction(b.chatID, tgbotapi.ChatTyping))
	}
}

func levelIcon(l selector.Level) string {
	switch l {
	case selector.LevelSuccess:
		return "✅"
	case selector.LevelWarning:
		return "⚠️"
	case selector.LevelError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// formatBoard renders the board text and its inline keyboard.
func formatBoard(v selector.View) (string, tgbotapi.InlineKeyboardMarkup) {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

	var sb strings.Builder
	sb.WriteString("🍽 *Weekly Menu*")
	if v.Fallback {
		sb.WriteString(" _(sample recipes)_")
	}
	sb.WriteString("\n" + esc(v.Progress.Message) + "\n")

	if !v.Filters.IsZero() {
		var parts []string
		for _, f := range []string{v.Filters.Protein, v.Filters.Cuisine, v.Filters.CookingMethod} {
			if f != "" {
				parts = append(parts, esc(f))
			}
		}
		sb.WriteString("Filters: " + strings.Join(parts, ", ") + "\n")
	}

	sb.WriteString(fmt.Sprintf("\n*Your menu (%d/%d)*\n", len(v.Selection), recipe.MaxSelections))
	for i, r := range v.Selection {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, esc(r.Name)))
	}

	if o := v.Overlap; o != nil {
		sb.WriteString(fmt.Sprintf("\n🧮 *Overlap:* %d shared of %d ingredients, %d%% efficiency (%s)\n",
			len(o.SharedIngredients), o.TotalUnique, o.Efficiency, o.Tier()))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if v.GroceryList == nil {
		for _, r := range v.Displayed {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("➕ "+r.Name, "toggle|"+r.ID)))
		}
		for _, r := range v.Selection {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+r.Name, "toggle|"+r.ID)))
		}
	}

	var actions []tgbotapi.InlineKeyboardButton
	switch {
	case v.GroceryList != nil:
		actions = append(actions, tgbotapi.NewInlineKeyboardButtonData("✖ Close grocery list", "close"))
	case v.GroceryEnabled:
		actions = append(actions, tgbotapi.NewInlineKeyboardButtonData("🛒 "+v.GroceryLabel, "grocery"))
	default:
		sb.WriteString("\n_" + esc(v.GroceryLabel) + "_\n")
	}
	if !v.Filters.IsZero() {
		actions = append(actions, tgbotapi.NewInlineKeyboardButtonData("Clear filters", "clear"))
	}
	actions = append(actions, tgbotapi.NewInlineKeyboardButtonData("🔄 Fresh", "fresh"))
	rows = append(rows, actions)

	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Service Calls*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d calls, %d failed, avg %dms\n", d.Date, d.TotalCalls, d.Failures, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %s (Alloc) / %s (Sys)\n", health.Alloc, health.Sys))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	return sb.String()
}

// chunk splits s on line boundaries into pieces of at most n bytes.
func chunk(s string, n int) []string {
	var out []string
	for len(s) > n {
		cut := strings.LastIndex(s[:n], "\n")
		if cut <= 0 {
			cut = n
		}
		out = append(out, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
