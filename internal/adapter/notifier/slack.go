package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	httpClient  *http.Client
}

func NewSlackNotifier(botToken, channel, mentionTeam string) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyHighRiskAssessment sends a formatted alert for an assessment that
// landed at or above the high tier
func (s *SlackNotifier) NotifyHighRiskAssessment(assessment domain.Assessment) error {
	blocks := s.buildAssessmentBlocks(assessment)

	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  blocks,
		Text:    fmt.Sprintf("🚨 %s risk IOC: %s (score %d)", strings.ToUpper(assessment.Tier.String()), assessment.IOC.Value, assessment.Score),
	}

	return s.sendMessage(payload)
}

// NotifyBurnedInfrastructure sends an alert the first time an IOC's history
// qualifies as burned
func (s *SlackNotifier) NotifyBurnedInfrastructure(summary domain.TemporalSummary) error {
	blocks := s.buildBurnedBlocks(summary)

	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  blocks,
		Text:    fmt.Sprintf("🔥 Burned infrastructure: %s", summary.IOC.Value),
	}

	return s.sendMessage(payload)
}

// Build Slack message blocks for a high-risk assessment
func (s *SlackNotifier) buildAssessmentBlocks(assessment domain.Assessment) []SlackBlock {
	emoji := severityEmoji[assessment.Tier.String()]
	if emoji == "" {
		emoji = "⚠️"
	}

	blocks := []SlackBlock{
		// Header with severity
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: fmt.Sprintf("%s %s Risk IOC Detected", emoji, strings.ToUpper(assessment.Tier.String())),
			},
		},
		// Assessment details
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Value*\n`%s`", assessment.IOC.Value)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Type*\n%s", assessment.IOC.Type)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Score*\n%d/100", assessment.Score)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Assessed*\n%s", assessment.CreatedAt.Format("2006-01-02 15:04 UTC"))},
			},
		},
		{Type: "divider"},
	}

	// One evidence line per provider
	for _, result := range assessment.Results {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("%s *%s*: %s", statusEmoji(result.Status), result.Provider, summarizeResult(result)),
			},
		})
	}

	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("🔔 %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

// Build Slack blocks for burned infrastructure
func (s *SlackNotifier) buildBurnedBlocks(summary domain.TemporalSummary) []SlackBlock {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "🔥 Burned Infrastructure Detected",
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Value*\n`%s`", summary.IOC.Value)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Type*\n%s", summary.IOC.Type)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Latest Score*\n%d/100", summary.LatestScore)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Assessments*\n%d", summary.AssessmentCount)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*First Seen*\n%s", summary.FirstSeen.Format("2006-01-02"))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Last Updated*\n%s", summary.LastUpdated.Format("2006-01-02"))},
			},
		},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: "Sustained high-tier scoring across the detection window. Treat as permanently compromised and add to blocklists.",
			},
		},
	}

	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("🔔 %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

// summarizeResult renders one provider result as a human-readable line
func summarizeResult(result domain.ProviderResult) string {
	if !result.OK() {
		return string(result.Status)
	}

	switch sig := result.Signal.(type) {
	case domain.VirusTotalSignal:
		return fmt.Sprintf("%d of %d engines flagged (%d malicious, %d suspicious)",
			sig.Malicious+sig.Suspicious, sig.TotalEngines(), sig.Malicious, sig.Suspicious)
	case domain.SecurityTrailsSignal:
		return fmt.Sprintf("%d resolutions, %d recent", sig.ResolutionCount, sig.RecentCount)
	case domain.WhoisSignal:
		registrar := sig.Registrar
		if registrar == "" {
			registrar = "unknown"
		}
		if sig.DomainAgeDays < 0 {
			return fmt.Sprintf("registrar %s, age unknown", registrar)
		}
		return fmt.Sprintf("registrar %s, %d days old", registrar, sig.DomainAgeDays)
	default:
		return string(result.Status)
	}
}

var severityEmoji = map[string]string{
	"critical": "🔴",
	"high":     "🟠",
	"medium":   "🟡",
	"low":      "🟢",
}

func statusEmoji(status domain.ProviderStatus) string {
	switch status {
	case domain.StatusOK:
		return "✅"
	case domain.StatusTimeout:
		return "⏳"
	case domain.StatusUnavailable:
		return "🚫"
	default:
		return "❌"
	}
}

// Send message to Slack
func (s *SlackNotifier) sendMessage(msg SlackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequest("POST", "https://slack.com/api/chat.postMessage", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	return nil
}

// Slack API structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Blocks  []SlackBlock `json:"blocks"`
	Text    string       `json:"text"` // Fallback text
}

type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
