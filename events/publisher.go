// Package events publishes committed catalog items to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// EventTypeProductScraped is published once per committed item.
const EventTypeProductScraped = "PRODUCT_SCRAPED"

const source = "catalog-scraper"

// RedisClient is the subset of the Redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// ProductScrapedPayload is the JSON document carried in the stream entry.
type ProductScrapedPayload struct {
	EventID      string              `json:"event_id"`
	EventType    string              `json:"event_type"`
	Timestamp    time.Time           `json:"timestamp"`
	SKU          string              `json:"sku"`
	Name         string              `json:"name"`
	Price        string              `json:"price"`
	Category     models.CategoryPath `json:"category"`
	ProductURL   string              `json:"product_url"`
	Sizes        []string            `json:"sizes"`
	Fabrics      []string            `json:"fabrics"`
	Images       []string            `json:"images"`
	VariantCount int                 `json:"variant_count"`
	Source       string              `json:"source"`
}

// Publisher appends one stream entry per committed item.
type Publisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher wraps an existing client.
func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
		now:    time.Now,
	}
}

// Dial connects to Redis at addr and verifies the connection.
func Dial(ctx context.Context, addr, stream string, logger *slog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return NewPublisher(client, stream, logger), nil
}

// Notify publishes item to the stream.
func (p *Publisher) Notify(ctx context.Context, item *models.ScrapedItem) error {
	payload := NewPayload(item, p.now())

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"type":      payload.EventType,
			"event_id":  payload.EventID,
			"sku":       payload.SKU,
			"timestamp": strconv.FormatInt(payload.Timestamp.UnixNano(), 10),
			"source":    source,
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"stream", p.stream,
		"stream_id", id,
		"event_id", payload.EventID,
		"sku", payload.SKU)
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// NewPayload builds the event document for item. Hosted image URLs are
// preferred over source URLs when a media store produced them.
func NewPayload(item *models.ScrapedItem, at time.Time) *ProductScrapedPayload {
	r := item.Record
	images := make([]string, 0, len(item.Images))
	for _, img := range item.Images {
		if img.HostedURL != "" {
			images = append(images, img.HostedURL)
		} else {
			images = append(images, img.SourceURL)
		}
	}

	return &ProductScrapedPayload{
		EventID:      uuid.New().String(),
		EventType:    EventTypeProductScraped,
		Timestamp:    at.UTC(),
		SKU:          r.SKU,
		Name:         r.Name,
		Price:        r.Price,
		Category:     r.Category,
		ProductURL:   r.SourceURL,
		Sizes:        r.Sizes,
		Fabrics:      r.Fabrics,
		Images:       images,
		VariantCount: len(item.Variants),
		Source:       source,
	}
}
