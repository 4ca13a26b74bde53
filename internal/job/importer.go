package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/jobboard/internal/metrics"
	"github.com/hitoshi/jobboard/internal/model"
	"github.com/hitoshi/jobboard/internal/repository"
)

// maxFeedBodySize は取り込み時に読み込む本文の上限。
const maxFeedBodySize = 5 * 1024 * 1024

// URLGuard は外部URLへのアクセスを制限する。
type URLGuard interface {
	ValidateURL(rawURL string) error
	Client() *http.Client
}

// ImportResult はフィード取り込みの結果。
type ImportResult struct {
	FeedURL  string       `json:"feedUrl"`
	Imported []*model.Job `json:"imported"`
	Skipped  int          `json:"skipped"` // 取り込み済みのため無視した記事数
}

// Importer は雇用者のRSS/Atomフィードの記事を求人として取り込む。
// 記事のGUIDで重複を判定するため、同じフィードを何度取り込んでもよい。
type Importer struct {
	guard     URLGuard
	repo      repository.JobRepository
	sanitizer Sanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewImporter はImporterを生成する。
func NewImporter(guard URLGuard, repo repository.JobRepository, sanitizer Sanitizer, mc metrics.MetricsCollector) *Importer {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Importer{
		guard:     guard,
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   mc,
		now:       time.Now,
	}
}

// Import はURLのフィードを取り込む。URLがHTMLページの場合は告知されたフィードを探す。
func (im *Importer) Import(ctx context.Context, employerID, rawURL string) (*ImportResult, error) {
	start := im.now()
	defer func() {
		im.metrics.RecordImportLatency(im.now().Sub(start))
	}()

	feedURL, body, err := im.locateFeed(ctx, strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		slog.Warn("failed to parse job feed",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewImportFailedError("the feed could not be parsed")
	}

	result := &ImportResult{FeedURL: feedURL, Imported: []*model.Job{}}
	company := im.sanitizer.StripTags(parsed.Title)
	if company == "" {
		company = hostOf(feedURL)
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		guid := itemGUID(item)
		if guid == "" {
			continue
		}

		existing, err := im.repo.FindBySourceGUID(ctx, employerID, guid)
		if err != nil {
			return nil, fmt.Errorf("failed to look up imported job: %w", err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		job := im.toJob(employerID, company, guid, item)
		if job == nil {
			continue
		}
		if err := im.repo.Create(ctx, job); err != nil {
			if isConflict(err) {
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to save imported job: %w", err)
		}
		result.Imported = append(result.Imported, job)
	}

	im.metrics.RecordJobsImported(len(result.Imported))
	slog.Info("jobs imported from feed",
		slog.String("employer_id", employerID),
		slog.String("feed_url", feedURL),
		slog.Int("imported", len(result.Imported)),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// locateFeed はURLを取得し、フィード本体とそのURLを返す。
func (im *Importer) locateFeed(ctx context.Context, rawURL string) (string, []byte, error) {
	contentType, body, err := im.fetch(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}
	if isFeed(contentType, body) {
		return rawURL, body, nil
	}
	if !isHTML(contentType) {
		return "", nil, model.NewImportFailedError("no RSS or Atom feed found at this URL")
	}

	link, ok := bestFeedLink(findFeedLinks(body, rawURL), rawURL)
	if !ok {
		return "", nil, model.NewImportFailedError("no RSS or Atom feed found at this URL")
	}

	contentType, body, err = im.fetch(ctx, link.URL)
	if err != nil {
		return "", nil, err
	}
	if !isFeed(contentType, body) && !looksLikeXML(body) {
		return "", nil, model.NewImportFailedError("the advertised feed is not RSS or Atom")
	}
	return link.URL, body, nil
}

func (im *Importer) fetch(ctx context.Context, rawURL string) (string, []byte, error) {
	if err := im.guard.ValidateURL(rawURL); err != nil {
		return "", nil, model.NewInvalidURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "JobBoard/1.0 Feed Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9")

	resp, err := im.guard.Client().Do(req)
	if err != nil {
		slog.Warn("failed to fetch feed source", slog.String("url", rawURL), slog.String("error", err.Error()))
		return "", nil, model.NewImportFailedError("the URL could not be reached")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, model.NewImportFailedError(describeStatus(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return "", nil, model.NewImportFailedError("the response could not be read")
	}
	return resp.Header.Get("Content-Type"), body, nil
}

// describeStatus は取得失敗時のステータスコードを利用者向けの理由に変換する。
func describeStatus(code int) string {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return "the feed no longer exists at this URL"
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return "the feed requires authentication"
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Sprintf("the server is temporarily unavailable (HTTP %d), please try again later", code)
	default:
		return fmt.Sprintf("the server responded with HTTP %d", code)
	}
}

// toJob はフィード記事を求人に変換する。タイトルか本文が空の記事はnilを返す。
func (im *Importer) toJob(employerID, company, guid string, item *gofeed.Item) *model.Job {
	title := im.sanitizer.StripTags(item.Title)
	content := item.Content
	if content == "" {
		content = item.Description
	}
	description := im.sanitizer.Sanitize(content)
	if title == "" || description == "" {
		return nil
	}

	now := im.now()
	posted := now
	if item.PublishedParsed != nil {
		posted = *item.PublishedParsed
	}

	category := defaultCategory
	if len(item.Categories) > 0 {
		if c := im.sanitizer.StripTags(item.Categories[0]); c != "" {
			category = c
		}
	}

	return &model.Job{
		ID:              uuid.New().String(),
		EmployerID:      employerID,
		Title:           title,
		Company:         company,
		Location:        "Not specified",
		Description:     description,
		Type:            defaultType,
		ExperienceLevel: defaultExperienceLevel,
		Remote:          mentionsRemote(title, item.Categories),
		Category:        category,
		IsActive:        true,
		SourceGUID:      guid,
		PostedDate:      posted,
		UpdatedAt:       now,
	}
}

func itemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

func mentionsRemote(title string, categories []string) bool {
	if strings.Contains(strings.ToLower(title), "remote") {
		return true
	}
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), "remote") {
			return true
		}
	}
	return false
}

func looksLikeXML(body []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(body[:min(len(body), 256)])), "<?xml")
}

func isConflict(err error) bool {
	return errors.Is(err, repository.ErrConflict)
}
