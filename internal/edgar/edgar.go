// Package edgar lists and downloads 10-K and 10-Q filings from SEC EDGAR.
package edgar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// DefaultBaseURL is the public EDGAR host.
const DefaultBaseURL = "https://www.sec.gov"

// minSubmissionBytes separates a real full-submission text file from an
// error page.
const minSubmissionBytes = 10000

// ErrTickerNotFound is returned when SEC has no CIK for a ticker.
var ErrTickerNotFound = eris.New("edgar: ticker not found")

var accessionRe = regexp.MustCompile(`Acc-no:\s*([\d-]+)`)

// Getter fetches a URL body. *fetcher.Client implements it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Listing is one filing row from a company's EDGAR filing index.
type Listing struct {
	Ticker          string
	CIK             string
	FilingType      model.FilingType
	FilingDate      time.Time
	FiscalYear      int
	FiscalPeriod    model.FiscalPeriod
	AccessionNumber string
	// IndexURL is the filing's -index.htm page.
	IndexURL string
}

// Document is a downloaded filing body.
type Document struct {
	Body []byte
	URL  string
	// Ext is "txt" for the full submission or "html" for the primary document.
	Ext string
}

// ContentType returns the MIME type for the document body.
func (d Document) ContentType() string {
	if d.Ext == "txt" {
		return "text/plain"
	}
	return "text/html"
}

// Client talks to EDGAR through a rate-limited Getter.
type Client struct {
	get     Getter
	baseURL string

	mu   sync.Mutex
	ciks map[string]string
}

// New creates a Client. An empty baseURL uses DefaultBaseURL.
func New(get Getter, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{get: get, baseURL: strings.TrimRight(baseURL, "/")}
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// LookupCIK resolves a ticker to its 10-digit zero-padded CIK. The SEC
// ticker file is loaded once per Client.
func (c *Client) LookupCIK(ctx context.Context, ticker string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ciks == nil {
		body, err := c.get.Get(ctx, c.baseURL+"/files/company_tickers.json")
		if err != nil {
			return "", eris.Wrap(err, "edgar: load company tickers")
		}
		var entries map[string]tickerEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return "", eris.Wrap(err, "edgar: decode company tickers")
		}
		c.ciks = make(map[string]string, len(entries))
		for _, e := range entries {
			c.ciks[strings.ToUpper(e.Ticker)] = fmt.Sprintf("%010d", e.CIK)
		}
		zap.L().Debug("edgar: loaded ticker map", zap.Int("tickers", len(c.ciks)))
	}

	cik, ok := c.ciks[strings.ToUpper(ticker)]
	if !ok {
		return "", eris.Wrapf(ErrTickerNotFound, "%s", ticker)
	}
	return cik, nil
}

// ListFilings returns up to limit of the company's most recent 10-K and
// 10-Q filings, newest first. A non-empty form restricts the type.
func (c *Client) ListFilings(ctx context.Context, ticker, cik string, form model.FilingType, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 10
	}
	u := fmt.Sprintf("%s/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=%s&dateb=&owner=exclude&count=%d",
		c.baseURL, cik, form, browseCount(limit))

	body, err := c.get.Get(ctx, u)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: list filings for %s", ticker)
	}
	listings, err := parseBrowse(body, c.baseURL, strings.ToUpper(ticker), cik, form, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: parse filings for %s", ticker)
	}
	return listings, nil
}

// browse-edgar only accepts a few page sizes.
func browseCount(limit int) int {
	for _, n := range []int{10, 20, 40, 80, 100} {
		if n >= limit*2 {
			return n
		}
	}
	return 100
}

func parseBrowse(body []byte, baseURL, ticker, cik string, form model.FilingType, limit int) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}

	table := doc.Find("table.tableFile2")
	if table.Length() == 0 {
		zap.L().Warn("edgar: no filings table", zap.String("ticker", ticker))
		return nil, nil
	}

	var out []Listing
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cols := row.Find("td")
		if cols.Length() < 5 {
			return true
		}

		ft := model.FilingType(strings.TrimSpace(cols.Eq(0).Text()))
		if ft != model.Filing10K && ft != model.Filing10Q {
			return true
		}
		if form != "" && ft != form {
			return true
		}

		filed, err := time.Parse(time.DateOnly, strings.TrimSpace(cols.Eq(3).Text()))
		if err != nil {
			return true
		}
		m := accessionRe.FindStringSubmatch(cols.Eq(2).Text())
		if m == nil {
			return true
		}
		href, ok := cols.Eq(1).Find("a").First().Attr("href")
		if !ok {
			return true
		}

		out = append(out, Listing{
			Ticker:          ticker,
			CIK:             cik,
			FilingType:      ft,
			FilingDate:      filed,
			FiscalYear:      filed.Year(),
			FiscalPeriod:    model.FiscalPeriodFor(ft, filed),
			AccessionNumber: m[1],
			IndexURL:        absURL(baseURL, href),
		})
		return len(out) < limit
	})
	return out, nil
}

// Download fetches the filing body. The full submission text file is
// preferred; when it is missing or implausibly small the primary document
// linked from the filing index is used instead.
func (c *Client) Download(ctx context.Context, l Listing) (Document, error) {
	log := zap.L().With(zap.String("accession", l.AccessionNumber))

	txtURL := c.SubmissionURL(l.CIK, l.AccessionNumber)
	body, err := c.get.Get(ctx, txtURL)
	switch {
	case err == nil && len(body) > minSubmissionBytes:
		log.Debug("edgar: downloaded full submission", zap.Int("bytes", len(body)))
		return Document{Body: body, URL: txtURL, Ext: "txt"}, nil
	case err != nil:
		if ctx.Err() != nil {
			return Document{}, eris.Wrap(err, "edgar: download")
		}
		log.Debug("edgar: full submission unavailable, trying primary document", zap.Error(err))
	default:
		log.Debug("edgar: full submission too small, trying primary document", zap.Int("bytes", len(body)))
	}

	index, err := c.get.Get(ctx, l.IndexURL)
	if err != nil {
		return Document{}, eris.Wrap(err, "edgar: filing index")
	}
	docURL, err := primaryDocument(index, c.baseURL, l.FilingType)
	if err != nil {
		return Document{}, eris.Wrapf(err, "edgar: filing index %s", l.IndexURL)
	}
	body, err = c.get.Get(ctx, docURL)
	if err != nil {
		return Document{}, eris.Wrap(err, "edgar: primary document")
	}
	log.Debug("edgar: downloaded primary document", zap.String("url", docURL), zap.Int("bytes", len(body)))
	return Document{Body: body, URL: docURL, Ext: "html"}, nil
}

// SubmissionURL is the full-submission text file for an accession.
func (c *Client) SubmissionURL(cik, accession string) string {
	n, err := strconv.ParseInt(cik, 10, 64)
	if err == nil {
		cik = strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s.txt",
		c.baseURL, cik, strings.ReplaceAll(accession, "-", ""), accession)
}

func primaryDocument(index []byte, baseURL string, ft model.FilingType) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(index))
	if err != nil {
		return "", eris.Wrap(err, "parse html")
	}
	table := doc.Find("table.tableFile").First()
	if table.Length() == 0 {
		return "", eris.New("no document table")
	}

	var found string
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cols := row.Find("td")
		if cols.Length() < 4 {
			return true
		}
		if model.FilingType(strings.TrimSpace(cols.Eq(3).Text())) != ft {
			return true
		}
		href, ok := cols.Eq(2).Find("a").First().Attr("href")
		if !ok {
			return true
		}
		// iXBRL viewer links render client-side and carry no text.
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "/ix?") || strings.Contains(lower, "ixv") || strings.Contains(lower, "viewer") {
			return true
		}
		found = absURL(baseURL, href)
		return false
	})
	if found == "" {
		return "", eris.New("no primary document")
	}
	return found, nil
}

func absURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return baseURL + "/" + strings.TrimLeft(href, "/")
}
