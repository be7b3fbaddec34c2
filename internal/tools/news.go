// Package tools holds the built-in tool implementations registered at
// startup.
package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/tool"
)

const (
	newsMaxItems    = 10
	newsHTTPTimeout = 10 * time.Second
)

// NewsTool fetches headlines from the Google News RSS feed, either top
// stories or a keyword search. The raw listing is summarized by the LLM
// before delivery, so direct output stays off.
type NewsTool struct {
	client *http.Client
	logger *zap.Logger
}

func NewNewsTool(logger *zap.Logger) *NewsTool {
	return &NewsTool{
		client: &http.Client{Timeout: newsHTTPTimeout},
		logger: logger,
	}
}

func (t *NewsTool) Name() string        { return "news_summary" }
func (t *NewsTool) Commands() []string  { return []string{"/news"} }
func (t *NewsTool) DirectOutput() bool  { return false }
func (t *NewsTool) Description() string {
	return "Summarize today's top news or find news on a topic from Google News"
}

func (t *NewsTool) Spec() tool.Spec {
	return tool.Spec{
		Name:        t.Name(),
		Description: "Search and summarize the latest news from Google News, by keyword or top headlines overall",
		Parameters: tool.ArgsParameters(
			"News topic of interest, e.g. 'technology', 'stock market', or empty for top headlines"),
	}
}

type rssFeed struct {
	Items []rssItem `xml:"channel>item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

func (t *NewsTool) Execute(ctx context.Context, userID, args string) (string, error) {
	topic := strings.TrimSpace(args)

	var feedURL, label string
	if topic != "" {
		feedURL = "https://news.google.com/rss/search?q=" + url.QueryEscape(topic) + "&hl=en&gl=US&ceid=US:en"
		label = "topic: " + topic
	} else {
		feedURL = "https://news.google.com/rss?hl=en&gl=US&ceid=US:en"
		label = "top headlines"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build news request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch Google News: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Google News returned status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return "", fmt.Errorf("failed to parse news feed: %w", err)
	}

	if len(feed.Items) == 0 {
		return fmt.Sprintf("No news found for %s right now.", label), nil
	}

	items := feed.Items
	if len(items) > newsMaxItems {
		items = items[:newsMaxItems]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Latest news (%s):\n", label)
	for _, item := range items {
		title := item.Title
		// Google News appends the outlet name after " - "; drop it.
		if i := strings.LastIndex(title, " - "); i > 0 {
			title = title[:i]
		}
		fmt.Fprintf(&b, "- [%s](%s) (%s)\n", title, item.Link, item.PubDate)
	}

	t.logger.Debug("Fetched news", zap.String("label", label), zap.Int("items", len(items)))
	return b.String(), nil
}
