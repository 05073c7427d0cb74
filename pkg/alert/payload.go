package alert

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Format selects the JSON body a WebhookSink posts.
type Format string

const (
	FormatGeneric Format = "generic"
	FormatDiscord Format = "discord"
	FormatSlack   Format = "slack"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatGeneric, FormatDiscord, FormatSlack:
		return f, nil
	case "":
		return FormatGeneric, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Ts     int64        `json:"ts"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

// payloadFor builds the request body for a in the given format.
func payloadFor(f Format, a Alert) any {
	switch f {
	case FormatDiscord:
		fields := make([]discordField, 0, len(a.Metadata)+1)
		fields = append(fields, discordField{Name: "severity", Value: a.Severity.String(), Inline: true})
		for _, k := range sortedKeys(a.Metadata) {
			fields = append(fields, discordField{Name: k, Value: fmt.Sprint(a.Metadata[k]), Inline: true})
		}
		return discordPayload{Embeds: []discordEmbed{{
			Title:       a.Title,
			Description: a.Message,
			Color:       color(a.Severity),
			Fields:      fields,
			Timestamp:   a.Time.UTC().Format(time.RFC3339),
		}}}
	case FormatSlack:
		fields := make([]slackField, 0, len(a.Metadata))
		for _, k := range sortedKeys(a.Metadata) {
			fields = append(fields, slackField{Title: k, Value: fmt.Sprint(a.Metadata[k]), Short: true})
		}
		return slackPayload{
			Text: fmt.Sprintf("[%s] %s", strings.ToUpper(a.Severity.String()), a.Title),
			Attachments: []slackAttachment{{
				Color:  fmt.Sprintf("#%06x", color(a.Severity)),
				Title:  a.Title,
				Text:   a.Message,
				Fields: fields,
				Ts:     a.Time.Unix(),
			}},
		}
	default:
		return a
	}
}

func color(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0xdc2626
	case SeverityHigh:
		return 0xea580c
	case SeverityMedium:
		return 0xca8a04
	default:
		return 0x2563eb
	}
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
