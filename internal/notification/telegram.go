package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// TelegramAPI is the public Bot API endpoint.
const TelegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to one chat through the Bot API. Trade
// alerts are rendered from their evaluation; other alerts use Title and
// Message as given.
type TelegramNotifier struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramNotifier returns a notifier for the bot token and target chat.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL: TelegramAPI,
		token:   botToken,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the notifier at another Bot API server.
func (t *TelegramNotifier) WithBaseURL(u string) *TelegramNotifier {
	t.baseURL = strings.TrimRight(u, "/")
	return t
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := t.sendMessage(ctx, renderTelegram(alert)); err != nil {
		return err
	}
	slog.Debug("[telegram] sent alert", "level", alert.Level, "title", alert.Title)
	return nil
}

// apiReply is the envelope every Bot API method answers with.
type apiReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode message: %w", err)
	}
	url := t.baseURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var reply apiReply
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(raw, &reply) == nil && reply.Description != "" {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, reply.Description)
	}
	return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
}

// renderTelegram builds the MarkdownV2 text for an alert.
func renderTelegram(a Alert) string {
	if a.Level == AlertSignal && a.Signal != nil && a.Evaluation != nil {
		return signalMarkdown(*a.Signal, *a.Evaluation)
	}
	icon := map[AlertLevel]string{
		AlertSignal:   "📈",
		AlertWarning:  "⚠️",
		AlertCritical: "🚨",
	}[a.Level]
	if icon == "" {
		icon = "ℹ️"
	}
	text := icon + " *" + escapeMarkdown(a.Title) + "*"
	if a.Message != "" {
		text += "\n\n" + escapeMarkdown(a.Message)
	}
	return text
}

// signalMarkdown lays out a trade alert: headline, entry and expiry, then a
// fixed-width table of the component scores and the adjustments applied.
func signalMarkdown(sig model.Signal, ev model.Evaluation) string {
	icon := "📈"
	if sig.Decision == model.DecisionPut {
		icon = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s %s* %s\n", icon, sig.Decision, escapeMarkdown(sig.Instrument), timeframeLabel(sig.Timeframe))
	fmt.Fprintf(&b, "Effectiveness *%s* \\(threshold %s\\), %s\n",
		escapeMarkdown(fmt.Sprintf("%.1f%%", ev.Effectiveness)),
		escapeMarkdown(fmt.Sprintf("%.0f%%", ev.Threshold)),
		ev.Direction)
	fmt.Fprintf(&b, "Entry `%.5f` at %s, expires %s UTC\n",
		sig.EntryPrice, sig.EntryTS.UTC().Format("15:04"), sig.ExpiryTS.UTC().Format("15:04"))

	b.WriteString("```\n")
	for _, c := range ev.Breakdown.Components {
		if !c.Available {
			fmt.Fprintf(&b, "%-11s %5s  %s\n", preEscape(c.Name), "-", "n/a")
			continue
		}
		fmt.Fprintf(&b, "%-11s %5.0f  %s\n", preEscape(c.Name), c.Effectiveness, c.Direction)
	}
	for _, adj := range ev.Breakdown.Adjustments {
		fmt.Fprintf(&b, "%-11s %+5.0f\n", preEscape(adj.Reason), adj.Delta)
	}
	b.WriteString("```")

	if len(ev.Breakdown.Patterns) > 0 {
		names := make([]string, 0, len(ev.Breakdown.Patterns))
		for _, p := range ev.Breakdown.Patterns {
			names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.Direction))
		}
		b.WriteString("\nPatterns: " + escapeMarkdown(strings.Join(names, ", ")))
	}
	return b.String()
}

// timeframeLabel renders a bar size in seconds as M5, H1 and the like.
func timeframeLabel(sec int) string {
	switch {
	case sec > 0 && sec%3600 == 0:
		return fmt.Sprintf("H%d", sec/3600)
	case sec > 0 && sec%60 == 0:
		return fmt.Sprintf("M%d", sec/60)
	}
	return escapeMarkdown(fmt.Sprintf("%ds", sec))
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeMarkdown escapes text outside code spans for MarkdownV2.
func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

// preEscape escapes text inside a pre block, where only ` and \ are special.
func preEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(s)
}
