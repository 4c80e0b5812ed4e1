package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

// DirectoryAdapter crawls a corporate giving program directory rendered as
// HTML listing pages. It runs colly with its own delay rule matching the
// shared fetch interval, since colly manages its transport internally.
// No native filters; everything is compensated for downstream.
type DirectoryAdapter struct {
	cfg   SourceConfig
	fetch FetchConfig
}

func NewDirectoryAdapter(cfg SourceConfig, fetch FetchConfig) *DirectoryAdapter {
	fetch.applyDefaults()
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	return &DirectoryAdapter{cfg: cfg, fetch: fetch}
}

func (a *DirectoryAdapter) Name() string { return a.cfg.ID }

func (a *DirectoryAdapter) Capabilities() Capabilities { return Capabilities{} }

func (a *DirectoryAdapter) Fetch(ctx context.Context, q Query) ([]RawRecord, error) {
	sel := a.cfg.Selectors
	if sel.Container == "" {
		sel.Container = "article"
	}

	c := colly.NewCollector(
		colly.UserAgent(a.fetch.UserAgent),
		colly.MaxBodySize(4<<20),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       time.Duration(a.fetch.MinIntervalMs) * time.Millisecond,
	})
	c.SetRequestTimeout(time.Duration(a.fetch.TimeoutSeconds) * time.Second)

	var records []RawRecord
	var crawlErr error
	pages := 0

	c.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText(sel.Title))
		if title == "" {
			return
		}
		link := e.Request.AbsoluteURL(e.ChildAttr(sel.Link, "href"))
		html, _ := e.DOM.Html()
		records = append(records, RawRecord{
			ExternalID:  link,
			Title:       title,
			FunderName:  funderFromProgramTitle(title),
			Description: strings.TrimSpace(e.ChildText(sel.Summary)),
			RawAmount:   strings.TrimSpace(e.ChildText(sel.Amount)),
			RawDeadline: strings.TrimSpace(e.ChildText(sel.Deadline)),
			SourceType:  models.SourceCorporate,
			Payload:     []byte(html),
		})
	})

	c.OnHTML("a[rel=next]", func(e *colly.HTMLElement) {
		pages++
		if pages >= a.cfg.MaxPages {
			return
		}
		var revisit *colly.AlreadyVisitedError
		if err := e.Request.Visit(e.Attr("href")); err != nil && crawlErr == nil && !errors.As(err, &revisit) {
			crawlErr = err
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if crawlErr == nil {
			crawlErr = err
		}
	})

	if err := c.Visit(a.cfg.SeedURL); err != nil {
		return nil, adapterErr(a.Name(), classifyTransport(ctx, err), err)
	}
	c.Wait()

	// A mid-crawl error with partial results degrades to what was collected.
	if crawlErr != nil && len(records) == 0 {
		return nil, adapterErr(a.Name(), classifyTransport(ctx, crawlErr), crawlErr)
	}
	return records, nil
}

// funderFromProgramTitle strips common program suffixes so "Acme Corp
// Community Grants" attributes to "Acme Corp".
func funderFromProgramTitle(title string) string {
	lower := strings.ToLower(title)
	for _, suffix := range []string{
		" community grants", " giving program", " foundation grants",
		" charitable giving", " grant program", " grants",
	} {
		if idx := strings.Index(lower, suffix); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}
