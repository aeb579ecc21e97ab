package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/config"
	"github.com/georgemunganga/onchain-storefront/internal/platform/metrics"
)

const maxDocumentSize = 4 << 20

// Fetcher resolves a content id to its metadata document.
type Fetcher interface {
	Fetch(ctx context.Context, cid string) (*Document, error)
}

// Service fetches documents from an IPFS gateway and pins new ones.
type Service interface {
	Fetcher
	Pin(ctx context.Context, doc json.RawMessage) (string, error)
	PinFile(ctx context.Context, name string, r io.Reader) (string, error)
}

type service struct {
	http    *http.Client
	cfg     config.IPFS
	cache   *bigcache.BigCache
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCache builds the document cache. Content ids are immutable, so entries
// only leave the cache when their TTL passes.
func NewCache(ctx context.Context, cfg config.IPFS) (*bigcache.BigCache, error) {
	c := bigcache.DefaultConfig(cfg.CacheTTL)
	c.MaxEntrySize = cfg.MaxEntrySize
	c.HardMaxCacheSize = 256
	c.Verbose = false
	return bigcache.New(ctx, c)
}

// NewService creates a metadata service. cache may be nil.
func NewService(cfg config.IPFS, cache *bigcache.BigCache, logger *zap.Logger, m *metrics.Metrics) Service {
	return &service{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		cache:   cache,
		logger:  logger,
		metrics: m,
	}
}

func normaliseCID(cid string) string {
	cid = strings.TrimSpace(cid)
	cid = strings.TrimPrefix(cid, "ipfs://")
	return strings.TrimPrefix(cid, "/ipfs/")
}

func (s *service) Fetch(ctx context.Context, cid string) (*Document, error) {
	cid = normaliseCID(cid)
	if cid == "" {
		return nil, apperr.ValidationField("cid", "content id is required")
	}

	if s.cache != nil {
		if raw, err := s.cache.Get(cid); err == nil {
			doc, err := decode(raw)
			s.metrics.RecordMetadataFetch("cache", err)
			if err == nil {
				return doc, nil
			}
		}
	}

	raw, err := s.get(ctx, cid)
	s.metrics.RecordMetadataFetch("gateway", err)
	if err != nil {
		return nil, err
	}
	doc, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMetadataUnavailable, cid, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(cid, raw); err != nil {
			s.logger.Debug("metadata not cached", zap.String("cid", cid), zap.Error(err))
		}
	}
	return doc, nil
}

func (s *service) get(ctx context.Context, cid string) ([]byte, error) {
	url := strings.TrimRight(s.cfg.GatewayURL, "/") + "/" + cid
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMetadataUnavailable, cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: gateway returned %d", ErrMetadataUnavailable, cid, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMetadataUnavailable, cid, err)
	}
	return raw, nil
}

func decode(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc.Raw = json.RawMessage(raw)
	return &doc, nil
}

// ── pinning ───────────────────────────────────────────────────────────────────

type pinResult struct {
	IpfsHash string `json:"IpfsHash"`
}

func (s *service) Pin(ctx context.Context, doc json.RawMessage) (string, error) {
	if !json.Valid(doc) {
		return "", apperr.ValidationField("body", "metadata must be valid JSON")
	}
	body, err := json.Marshal(map[string]json.RawMessage{"pinataContent": doc})
	if err != nil {
		return "", err
	}
	return s.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(body))
}

func (s *service) PinFile(ctx context.Context, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return s.pin(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &buf)
}

func (s *service) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	if s.cfg.PinJWT == "" {
		return "", apperr.Precondition("pinning is not configured")
	}
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.PinURL, "/")+path, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.PinJWT)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pin request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out pinResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", errors.New("pin response has no hash")
	}

	s.logger.Info("content pinned",
		zap.String("cid", out.IpfsHash),
		zap.String("endpoint", path),
		zap.Duration("took", time.Since(started)),
	)
	return out.IpfsHash, nil
}
