package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/targetspro/adwatch/internal/models"
)

// Content is everything a channel adapter needs to render one alert. Rule
// and Account may be nil when the joined row is gone; renderers fall back
// to "Unknown" rather than failing the dispatch.
type Content struct {
	Alert        *models.Alert
	Rule         *models.AlertRule
	Account      *models.AdAccount
	Timezone     string
	DashboardURL string
}

type severityColor struct {
	bg   string
	text string
}

var severityColors = map[models.Severity]severityColor{
	models.SeverityInfo:      {bg: "#3B82F6", text: "#FFFFFF"},
	models.SeverityWarning:   {bg: "#F59E0B", text: "#000000"},
	models.SeverityCritical:  {bg: "#EF4444", text: "#FFFFFF"},
	models.SeverityEmergency: {bg: "#7F1D1D", text: "#FFFFFF"},
}

var severityEmoji = map[models.Severity]string{
	models.SeverityInfo:      "ℹ️",
	models.SeverityWarning:   "⚠️",
	models.SeverityCritical:  "\U0001F534",
	models.SeverityEmergency: "\U0001F6A8",
}

// inQuietHours reports whether now falls inside the channel's quiet-hours
// window, evaluated in the window's timezone (falling back to defaultTZ,
// then UTC when neither loads). A nil window means 24/7 delivery.
//
// Start > End means the window wraps midnight: in-window when
// now >= start OR now < end. Otherwise in-window when start <= now < end.
func inQuietHours(w *models.TimeWindow, defaultTZ string, now time.Time) bool {
	if w == nil {
		return false
	}

	tz := w.Timezone
	if tz == "" {
		tz = defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	current := now.In(loc).Format("15:04")

	if w.Start <= w.End {
		return current >= w.Start && current < w.End
	}
	return current >= w.Start || current < w.End
}

func (c *Content) accountName() string {
	if c.Account == nil || c.Account.AccountName == "" {
		return "Unknown"
	}
	return c.Account.AccountName
}

func (c *Content) platform() string {
	if c.Account == nil || c.Account.Platform == "" {
		return "Unknown"
	}
	return c.Account.Platform
}

func (c *Content) currency() string {
	if c.Account == nil || c.Account.Currency == "" {
		return "EGP"
	}
	return c.Account.Currency
}

// timestamp renders the alert creation time in the org timezone.
func (c *Content) timestamp() string {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return c.Alert.CreatedAt.In(loc).Format("Jan 2, 2006 3:04 PM")
}

func (c *Content) alertURL() string {
	return fmt.Sprintf("%s/alerts/%s", strings.TrimRight(c.DashboardURL, "/"), c.Alert.Reference)
}

// contextFields returns the display rows for the numeric evidence captured
// at trigger time, in a stable order.
func (c *Content) contextFields() [][2]string {
	ctx := c.Alert.ContextData
	var fields [][2]string

	if v, ok := ctx["days_remaining"]; ok {
		fields = append(fields, [2]string{"Days Remaining", formatContextNumber(v)})
	}
	if v, ok := ctx["pct_change"]; ok {
		fields = append(fields, [2]string{"Spend Change", "+" + formatContextNumber(v) + "%"})
	}
	oldStatus, hasOld := ctx["old_status"]
	newStatus, hasNew := ctx["new_status"]
	if hasOld && hasNew {
		fields = append(fields, [2]string{"Status Change",
			fmt.Sprintf("%v -> %v", oldStatus, newStatus)})
	}
	return fields
}

// RenderEmailSubject builds the subject line: severity plus title.
func RenderEmailSubject(c *Content) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(c.Alert.Severity)), c.Alert.Title)
}

// RenderEmailHTML builds the HTML email body: severity-colored header,
// message, account details, context evidence, timestamp and a dashboard link.
func RenderEmailHTML(c *Content) string {
	colors, ok := severityColors[c.Alert.Severity]
	if !ok {
		colors = severityColors[models.SeverityInfo]
	}

	var rows strings.Builder
	writeDetailRow(&rows, "Account", html.EscapeString(c.accountName()))
	writeDetailRow(&rows, "Platform", html.EscapeString(c.platform()))
	if c.Account != nil && c.Account.CurrentBalance != "" {
		writeDetailRow(&rows, "Balance",
			html.EscapeString(c.currency()+" "+c.Account.CurrentBalance))
	}
	for _, f := range c.contextFields() {
		writeDetailRow(&rows, f[0], html.EscapeString(f[1]))
	}
	writeDetailRow(&rows, "Time", c.timestamp())

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<body style="margin: 0; padding: 0; background-color: #F3F4F6; font-family: -apple-system, 'Segoe UI', Roboto, sans-serif;">
  <table role="presentation" width="100%%" cellpadding="0" cellspacing="0" style="background-color: #F3F4F6; padding: 24px;">
    <tr><td align="center">
      <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background-color: #FFFFFF; border-radius: 8px; overflow: hidden;">
        <tr>
          <td style="padding: 24px; background-color: %s;">
            <span style="display: inline-block; padding: 4px 12px; background-color: rgba(255,255,255,0.2); border-radius: 4px; color: %s; font-size: 12px; font-weight: 700; text-transform: uppercase;">%s</span>
            <h1 style="margin: 12px 0 0; color: %s; font-size: 20px; font-weight: 600;">%s</h1>
          </td>
        </tr>
        <tr>
          <td style="padding: 24px;">
            <p style="margin: 0 0 16px; color: #374151; font-size: 15px; line-height: 1.5;">%s</p>
            <table role="presentation" width="100%%" cellpadding="0" cellspacing="0" style="background-color: #F9FAFB; border-radius: 6px; margin-bottom: 16px;">
%s            </table>
            <table role="presentation" cellpadding="0" cellspacing="0" style="margin: 0 auto;">
              <tr><td style="padding: 12px 24px; background-color: #3B82F6; border-radius: 6px;">
                <a href="%s" style="color: #FFFFFF; text-decoration: none; font-size: 14px; font-weight: 600;">View in Dashboard</a>
              </td></tr>
            </table>
          </td>
        </tr>
        <tr>
          <td style="padding: 16px 24px; background-color: #F9FAFB; border-top: 1px solid #E5E7EB;">
            <p style="margin: 0; color: #9CA3AF; font-size: 12px; text-align: center;">Targetspro Alert Engine &mdash; %s</p>
          </td>
        </tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`,
		colors.bg, colors.text, c.Alert.Severity, colors.text,
		html.EscapeString(c.Alert.Title),
		html.EscapeString(c.Alert.Message),
		rows.String(),
		c.alertURL(),
		c.timestamp())
}

func writeDetailRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, `              <tr>
                <td style="padding: 6px 12px; color: #6B7280; font-size: 14px;">%s</td>
                <td style="padding: 6px 12px; font-size: 14px; font-weight: 600;">%s</td>
              </tr>
`, label, value)
}

// RenderTelegramText builds the compact HTML-parse-mode message: severity
// emoji, bold title, account, context fields, timestamp.
func RenderTelegramText(c *Content) string {
	emoji := severityEmoji[c.Alert.Severity]

	lines := []string{
		fmt.Sprintf("%s <b>%s: %s</b>", emoji,
			escapeTelegram(strings.ToUpper(string(c.Alert.Severity))),
			escapeTelegram(c.Alert.Title)),
		"",
		escapeTelegram(c.Alert.Message),
		"",
		fmt.Sprintf("Account: <b>%s</b>", escapeTelegram(c.accountName())),
		fmt.Sprintf("Platform: %s", escapeTelegram(c.platform())),
	}

	ctx := c.Alert.ContextData
	if v, ok := ctx["balance"]; ok {
		lines = append(lines, fmt.Sprintf("Balance: %s %s",
			escapeTelegram(c.currency()), formatContextNumber(v)))
	}
	if v, ok := ctx["days_remaining"]; ok {
		lines = append(lines, fmt.Sprintf("Days remaining: %s", formatContextNumber(v)))
	}
	if v, ok := ctx["pct_change"]; ok {
		lines = append(lines, fmt.Sprintf("Spike: +%s%% above average", formatContextNumber(v)))
	}
	oldStatus, hasOld := ctx["old_status"]
	newStatus, hasNew := ctx["new_status"]
	if hasOld && hasNew {
		lines = append(lines, fmt.Sprintf("Status: %v -> %v", oldStatus, newStatus))
	}

	lines = append(lines, "", fmt.Sprintf("Time: %s", c.timestamp()))
	return strings.Join(lines, "\n")
}

// RenderWhatsAppParams builds the ordered body parameters for the alert
// template message: severity, title, account, message, timestamp.
func RenderWhatsAppParams(c *Content) []string {
	return []string{
		strings.ToUpper(string(c.Alert.Severity)),
		c.Alert.Title,
		c.accountName(),
		c.Alert.Message,
		c.timestamp(),
	}
}

// escapeTelegram escapes entities for Telegram's HTML parse mode, which
// accepts a narrower set than full HTML.
func escapeTelegram(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// formatContextNumber renders context_data values, which arrive as float64
// after a JSON round trip, without trailing noise.
func formatContextNumber(v interface{}) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', 0, 64)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}
