package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

// StaticConfig controls the no-JS renderer.
type StaticConfig struct {
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
}

// StaticRenderer fetches raw HTML through Colly without executing scripts.
// It serves static sites and deterministic single-page runs where a full
// browser is unnecessary.
type StaticRenderer struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewStaticRenderer constructs a configured Colly-backed renderer.
func NewStaticRenderer(cfg StaticConfig, logger *zap.Logger) (*StaticRenderer, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &StaticRenderer{baseCollector: base, logger: logger}, nil
}

// Render fetches the page body and derives visible text from the markup.
func (r *StaticRenderer) Render(ctx context.Context, rawURL string) (capsule.Page, error) {
	collector := r.baseCollector.Clone()
	resultCh := make(chan staticResult, 1)
	var once sync.Once
	send := func(res staticResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(resp *colly.Response) {
		send(staticResult{body: append([]byte{}, resp.Body...)})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(staticResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return capsule.Page{}, fmt.Errorf("static fetch %s: %w", rawURL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return capsule.Page{}, fmt.Errorf("%w: %s", ErrRenderTimeout, rawURL)
			}
			return capsule.Page{}, fmt.Errorf("static fetch %s: %w", rawURL, res.err)
		}
		if err := ctx.Err(); err != nil {
			return capsule.Page{}, err
		}
		html := string(res.body)
		return capsule.Page{
			URL:         rawURL,
			HTML:        html,
			VisibleText: VisibleText(html),
		}, nil
	default:
		return capsule.Page{}, errors.New("static fetch produced no result")
	}
}

type staticResult struct {
	body []byte
	err  error
}
