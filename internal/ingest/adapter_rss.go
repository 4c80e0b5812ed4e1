package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

// RSSAdapter pulls foundation news / RFP announcements from an RSS feed.
// It supports no native filters; keyword relevance is compensated for by
// the scoring layer downstream.
type RSSAdapter struct {
	client *Client
	cfg    SourceConfig
}

func NewRSSAdapter(client *Client, cfg SourceConfig) *RSSAdapter {
	return &RSSAdapter{client: client, cfg: cfg}
}

func (a *RSSAdapter) Name() string { return a.cfg.ID }

func (a *RSSAdapter) Capabilities() Capabilities { return Capabilities{} }

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

type rssFeed struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

func (a *RSSAdapter) Fetch(ctx context.Context, q Query) ([]RawRecord, error) {
	resp, err := a.client.Do(ctx, a.Name(), func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.FeedURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")
		return req, nil
	})
	if err != nil {
		return nil, adapterErr(a.Name(), classifyTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, adapterErr(a.Name(), ErrUnreachable, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, adapterErr(a.Name(), ErrUnreachable, fmt.Errorf("reading feed: %w", err))
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, adapterErr(a.Name(), ErrMalformed, fmt.Errorf("parsing feed: %w", err))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	records := make([]RawRecord, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		externalID := strings.TrimSpace(item.GUID)
		if externalID == "" {
			externalID = strings.TrimSpace(item.Link)
		}
		payload, _ := xml.Marshal(item)
		records = append(records, RawRecord{
			ExternalID:   externalID,
			Title:        title,
			FunderName:   funderFromFeedTitle(title, feed.Channel.Title),
			Description:  item.Description, // HTML; sanitized during normalization
			RawDeadline:  deadlineFromText(item.Description),
			RawPublished: item.PubDate,
			SourceType:   models.SourceFoundation,
			Payload:      payload,
		})
		if len(records) >= limit {
			break
		}
	}
	return records, nil
}

// funderFromFeedTitle extracts a funder name from RFP headlines shaped like
// "Gates Foundation Invites Applications for ...". Falls back to the feed
// channel title when no pattern matches.
func funderFromFeedTitle(itemTitle, channelTitle string) string {
	markers := []string{
		" invites applications",
		" accepting applications",
		" seeks proposals",
		" announces ",
		" issues rfp",
	}
	lower := strings.ToLower(itemTitle)
	for _, m := range markers {
		if idx := strings.Index(lower, m); idx > 0 {
			return strings.TrimSpace(itemTitle[:idx])
		}
	}
	return strings.TrimSpace(channelTitle)
}

// deadlineFromText pulls an obvious "Deadline: <date>" fragment out of the
// announcement body, if present. The robust parse happens in normalization.
func deadlineFromText(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range []string{"deadline:", "applications due", "due date:"} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(marker):]
		if end := strings.IndexAny(rest, ".<\n"); end > 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return ""
}
