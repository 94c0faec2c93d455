// Package slack posts saved meal plans to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"mealwizard"
	"mealwizard/persist"
	"mealwizard/wizard"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// PostPlan posts the plan summary of a saved session.
func PostPlan(ctx context.Context, sc mealwizard.SlackClient, channel string, s wizard.Summary, res persist.Result) error {
	return sc.PostMessage(ctx, channel, FormatPlan(s, res))
}

// FormatPlan renders the selected meals and the save outcome as Slack mrkdwn.
func FormatPlan(s wizard.Summary, res persist.Result) string {
	var b strings.Builder

	name := s.EventName
	if name == "" {
		name = s.EventID
	}
	fmt.Fprintf(&b, "*Meal plan saved for %s*\n", name)
	fmt.Fprintf(&b, "Budget: %.2f (%s split)\n", s.Budget.Total, s.Budget.Strategy)

	for _, cat := range s.Categories {
		var amount string
		for _, a := range s.Budget.Allocations {
			if a.Category == cat {
				amount = fmt.Sprintf(" (%.0f%%, %.2f)", a.Percentage, a.BudgetAmount)
			}
		}
		fmt.Fprintf(&b, "\n*%s*%s\n", cat, amount)
		for _, c := range s.Selected[cat] {
			fmt.Fprintf(&b, "• %s\n", c.Name)
		}
	}

	fmt.Fprintf(&b, "\n%d meals created, %d recipes attached", len(res.MealsCreated), res.RecipesAttached)
	if res.AlreadySaved > 0 {
		fmt.Fprintf(&b, ", %d already saved", res.AlreadySaved)
	}
	if len(s.Budget.Recommendations) > 0 {
		b.WriteString("\n\n_Tips:_\n")
		for _, r := range s.Budget.Recommendations {
			fmt.Fprintf(&b, "• %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
