package slack_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"mealwizard"
	"mealwizard/budget"
	"mealwizard/persist"
	"mealwizard/slack"
	"mealwizard/wizard"
)

type mockDoer struct {
	resp   *http.Response
	err    error
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return m.resp, m.err
}

func TestNewClient(t *testing.T) {
	webhook := "http://slack.com/webhook"
	client := slack.NewClient(webhook, &mockDoer{})
	must.NotNil(t, client, "expected non-nil client")
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name    string
		doFunc  func(req *http.Request) (*http.Response, error)
		wantErr error
	}{
		{
			name: "success",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
			},
			wantErr: nil,
		},
		{
			name: "failure status",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request", Body: io.NopCloser(bytes.NewBufferString("bad request"))}, nil
			},
			wantErr: fmt.Errorf("failed to post message: 400 Bad Request"),
		},
		{
			name: "do error",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network error")
			},
			wantErr: fmt.Errorf("network error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: tt.doFunc})
			err := client.PostMessage(context.Background(), "#events", "Plan saved")
			should.Equal(t, tt.wantErr, err)
		})
	}
}

func testSummary() wizard.Summary {
	return wizard.Summary{
		EventID:   "ev-1",
		EventName: "Team offsite",
		Budget: wizard.BudgetView{
			Strategy: budget.StrategyAI,
			Total:    200,
			Allocations: []mealwizard.MealBudgetAllocation{
				{Category: mealwizard.Lunch, Percentage: 40, BudgetAmount: 80},
				{Category: mealwizard.Dinner, Percentage: 60, BudgetAmount: 120},
			},
			Recommendations: []string{"Buy in bulk"},
		},
		Categories: []mealwizard.MealCategory{mealwizard.Lunch, mealwizard.Snacks},
		Selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
			mealwizard.Lunch:  {{ID: "r1", Name: "Chana masala"}, {ID: "r2", Name: "Jeera rice"}},
			mealwizard.Snacks: {{ID: "i1", Name: "Samosa"}},
		},
		CountChosen: 3,
	}
}

func TestFormatPlan(t *testing.T) {
	res := persist.Result{
		MealsCreated:    []mealwizard.Meal{{ID: "m1", Category: mealwizard.Lunch}},
		RecipesAttached: 2,
	}

	got := slack.FormatPlan(testSummary(), res)

	should.Equal(t, "*Meal plan saved for Team offsite*\n"+
		"Budget: 200.00 (ai split)\n"+
		"\n*lunch* (40%, 80.00)\n"+
		"• Chana masala\n"+
		"• Jeera rice\n"+
		"\n*snacks*\n"+
		"• Samosa\n"+
		"\n1 meals created, 2 recipes attached"+
		"\n\n_Tips:_\n"+
		"• Buy in bulk", got)
}

func TestPostPlan(t *testing.T) {
	var payload map[string]string
	client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		must.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
	}})

	err := slack.PostPlan(context.Background(), client, "#events", testSummary(), persist.Result{AlreadySaved: 2})
	must.NoError(t, err)
	should.Equal(t, "#events", payload["channel"])
	should.Contains(t, payload["text"], "0 meals created, 0 recipes attached, 2 already saved")
}
