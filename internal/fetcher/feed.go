package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"signalchat/internal/domain"
)

// watermarkLayouts lists the formats accepted when reading a watermark
// back; older deployments wrote seconds and dashes.
var watermarkLayouts = []string{
	domain.WatermarkLayout,
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
}

// Feed reads an RSS, Atom or JSON advisory feed and turns the items updated
// after the watermark into records.
type Feed struct {
	url    string
	client *http.Client
	parser *gofeed.Parser
}

func NewFeed(url string) *Feed {
	return &Feed{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
	}
}

func (f *Feed) Fetch(ctx context.Context, since string) (*Result, error) {
	res, err := f.fetch(ctx, since)
	if err != nil {
		return nil, &Error{Source: string(domain.EndpointFeed), Err: err}
	}
	return res, nil
}

func (f *Feed) fetch(ctx context.Context, since string) (*Result, error) {
	after, err := parseWatermark(since)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, application/json, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	type dated struct {
		item      *gofeed.Item
		published time.Time
		updated   time.Time
	}

	var items []dated
	for _, item := range feed.Items {
		published := item.PublishedParsed
		updated := item.UpdatedParsed
		if published == nil {
			published = updated
		}
		if updated == nil {
			updated = published
		}
		if published == nil || !updated.After(after) {
			continue
		}
		items = append(items, dated{item: item, published: *published, updated: *updated})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].published.Before(items[j].published)
	})

	records := make([]domain.Record, 0, len(items))
	for i, d := range items {
		records = append(records, domain.Record{
			ID:        int64(i + 1),
			CreatedAt: d.published.In(time.Local).Format(domain.WatermarkLayout),
			UpdatedAt: d.updated.In(time.Local).Format(domain.WatermarkLayout),
			Subject:   d.item.Title,
			Body:      itemBody(d.item),
			TLP:       itemTLP(d.item),
		})
	}

	return &Result{Records: records, Total: len(records)}, nil
}

func parseWatermark(s string) (time.Time, error) {
	for _, layout := range watermarkLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised watermark %q", s)
}

func itemBody(item *gofeed.Item) string {
	body := item.Description
	if body == "" {
		body = item.Content
	}
	if item.Link != "" {
		body = strings.TrimSpace(body + "\n\n" + item.Link)
	}
	return body
}

func itemTLP(item *gofeed.Item) string {
	for _, c := range item.Categories {
		if strings.EqualFold(strings.TrimSpace(c), "TLP:RED") {
			return domain.TLPRed
		}
	}
	return ""
}
