// Package httpapi implements the host platform operations over its REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"mealwizard"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	token      string
	httpClient mealwizard.HTTPClient
}

func NewClient(baseURL, token string, httpClient mealwizard.HTTPClient) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func eventPath(eventID string, parts ...string) string {
	p := "/events/" + url.PathEscape(eventID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) SuggestBudget(ctx context.Context, eventID string) (mealwizard.BudgetSuggestion, error) {
	var out mealwizard.BudgetSuggestion
	err := c.do(ctx, http.MethodPost, eventPath(eventID, "budget", "suggest"), struct{}{}, &out)
	return out, err
}

func (c *Client) GenerateRecipes(ctx context.Context, eventID string, req mealwizard.GenerateRequest) ([]mealwizard.RawRecipe, error) {
	var out struct {
		Recipes []mealwizard.RawRecipe `json:"recipes"`
	}
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "recipes", "generate"), req, &out); err != nil {
		return nil, err
	}
	return out.Recipes, nil
}

func (c *Client) CreateMeal(ctx context.Context, eventID string, meal mealwizard.NewMeal) (string, error) {
	var out struct {
		MealID string `json:"meal_id"`
	}
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "meals"), meal, &out); err != nil {
		return "", err
	}
	if out.MealID == "" {
		return "", fmt.Errorf("create meal: response has no meal_id")
	}
	return out.MealID, nil
}

func (c *Client) AttachRecipe(ctx context.Context, eventID, mealID string, att mealwizard.RecipeAttachment) error {
	return c.do(ctx, http.MethodPost, eventPath(eventID, "meals", mealID, "recipes"), att, nil)
}

func (c *Client) CreateItem(ctx context.Context, eventID string, item mealwizard.NewItem) (string, error) {
	var out struct {
		ItemID string `json:"item_id"`
	}
	if err := c.do(ctx, http.MethodPost, eventPath(eventID, "items"), item, &out); err != nil {
		return "", err
	}
	if out.ItemID == "" {
		return "", fmt.Errorf("create item: response has no item_id")
	}
	return out.ItemID, nil
}

func (c *Client) DeleteItem(ctx context.Context, eventID, itemID string) error {
	return c.do(ctx, http.MethodDelete, eventPath(eventID, "items", itemID), nil, nil)
}

func (c *Client) ListItems(ctx context.Context, eventID string) ([]mealwizard.Item, error) {
	var out struct {
		Items []mealwizard.Item `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, eventPath(eventID, "items"), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (mealwizard.Event, error) {
	var out mealwizard.Event
	err := c.do(ctx, http.MethodGet, eventPath(eventID), nil, &out)
	return out, err
}

func (c *Client) ListParticipants(ctx context.Context, accountID string) ([]mealwizard.Participant, error) {
	var out struct {
		Participants []mealwizard.Participant `json:"participants"`
	}
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(accountID)+"/participants", nil, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

// do sends in as the JSON body when non-nil and decodes the response into out
// when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("PLATFORM: Request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Error("PLATFORM: Unexpected status", "method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
