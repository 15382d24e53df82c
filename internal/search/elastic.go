package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/olivere/elastic/v7"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

const propertiesMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "title_en":       {"type": "text"},
      "title_ar":       {"type": "text", "analyzer": "arabic"},
      "description_en": {"type": "text"},
      "description_ar": {"type": "text", "analyzer": "arabic"},
      "slug_en":        {"type": "keyword"},
      "slug_ar":        {"type": "keyword"},
      "purpose":        {"type": "keyword"},
      "type":           {"type": "keyword"},
      "status":         {"type": "keyword"},
      "price_amount":   {"type": "double"},
      "price_currency": {"type": "keyword"},
      "bedrooms":       {"type": "integer"},
      "featured":       {"type": "boolean"},
      "published":      {"type": "boolean"},
      "location":       {"type": "geo_point"},
      "created_at":     {"type": "date"}
    }
  }
}`

// Document is the indexed form of a property.
type Document struct {
	ID            string            `json:"id"`
	TitleEN       string            `json:"title_en"`
	TitleAR       string            `json:"title_ar"`
	DescriptionEN string            `json:"description_en,omitempty"`
	DescriptionAR string            `json:"description_ar,omitempty"`
	SlugEN        string            `json:"slug_en"`
	SlugAR        string            `json:"slug_ar"`
	Purpose       string            `json:"purpose"`
	Type          string            `json:"type"`
	Status        string            `json:"status"`
	PriceAmount   float64           `json:"price_amount"`
	PriceCurrency string            `json:"price_currency"`
	Bedrooms      *int              `json:"bedrooms,omitempty"`
	Featured      bool              `json:"featured"`
	Published     bool              `json:"published"`
	Location      *elastic.GeoPoint `json:"location,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewDocument flattens a property for indexing.
func NewDocument(p *types.Property) Document {
	d := Document{
		ID:            p.ID.String(),
		TitleEN:       p.TitleEN,
		TitleAR:       p.TitleAR,
		SlugEN:        p.SlugEN,
		SlugAR:        p.SlugAR,
		Purpose:       string(p.Purpose),
		Type:          string(p.Type),
		Status:        string(p.Status),
		PriceAmount:   p.PriceAmount,
		PriceCurrency: string(p.PriceCurrency),
		Bedrooms:      p.Bedrooms,
		Featured:      p.Featured,
		Published:     p.Published,
		CreatedAt:     p.CreatedAt,
	}
	if p.DescriptionEN != nil {
		d.DescriptionEN = *p.DescriptionEN
	}
	if p.DescriptionAR != nil {
		d.DescriptionAR = *p.DescriptionAR
	}
	if p.HasCoordinates() {
		d.Location = elastic.GeoPointFromLatLon(*p.Lat, *p.Lng)
	}
	return d
}

type ElasticIndexer struct {
	client *elastic.Client
	index  string
	logger *slog.Logger
}

var _ Indexer = (*ElasticIndexer)(nil)

// NewElasticIndexer connects to the cluster at url. Sniffing is disabled so a
// single node behind a proxy works.
func NewElasticIndexer(url, index string, logger *slog.Logger) (*ElasticIndexer, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheckTimeoutStartup(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticIndexer{client: client, index: index, logger: logger}, nil
}

// EnsureIndex creates the index with its mapping when missing.
func (e *ElasticIndexer) EnsureIndex(ctx context.Context) error {
	exists, err := e.client.IndexExists(e.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", e.index, err)
	}
	if exists {
		return nil
	}
	created, err := e.client.CreateIndex(e.index).BodyString(propertiesMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", e.index, err)
	}
	if !created.Acknowledged {
		e.logger.WarnContext(ctx, "index creation was not acknowledged", slog.String("index", e.index))
	}
	return nil
}

func (e *ElasticIndexer) IndexProperty(ctx context.Context, p *types.Property) error {
	ctx, span := otel.Tracer("ElasticIndexer").Start(ctx, "IndexProperty")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", p.ID.String()))

	_, err := e.client.Index().
		Index(e.index).
		Id(p.ID.String()).
		BodyJson(NewDocument(p)).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index failed")
		return fmt.Errorf("failed to index property %s: %w", p.ID, err)
	}
	return nil
}

func (e *ElasticIndexer) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("ElasticIndexer").Start(ctx, "DeleteProperty")
	defer span.End()

	_, err := e.client.Delete().Index(e.index).Id(id.String()).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("failed to delete property %s from index: %w", id, err)
	}
	return nil
}

// BuildQuery turns a search request into an Elasticsearch bool query.
func BuildQuery(q Query) *elastic.BoolQuery {
	b := elastic.NewBoolQuery()
	if q.Text != "" {
		b.Must(elastic.NewMultiMatchQuery(q.Text, "title_en^2", "title_ar^2", "description_en", "description_ar").
			Fuzziness("AUTO"))
	} else {
		b.Must(elastic.NewMatchAllQuery())
	}
	if q.Purpose != "" {
		b.Filter(elastic.NewTermQuery("purpose", string(q.Purpose)))
	}
	if len(q.Types) > 0 {
		values := make([]interface{}, len(q.Types))
		for i, t := range q.Types {
			values[i] = string(t)
		}
		b.Filter(elastic.NewTermsQuery("type", values...))
	}
	if q.PublishedOnly {
		b.Filter(elastic.NewTermQuery("published", true))
	}
	return b
}

func (e *ElasticIndexer) Search(ctx context.Context, q Query) (*Result, error) {
	ctx, span := otel.Tracer("ElasticIndexer").Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.text", q.Text))

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	svc := e.client.Search().
		Index(e.index).
		Query(BuildQuery(q)).
		From((page - 1) * size).
		Size(size).
		FetchSource(false)
	switch q.Sort {
	case types.SortPriceAsc:
		svc = svc.Sort("price_amount", true)
	case types.SortPriceDesc:
		svc = svc.Sort("price_amount", false)
	case types.SortNewest:
		svc = svc.Sort("created_at", false)
	default:
		svc = svc.SortBy(elastic.NewScoreSort(), elastic.NewFieldSort("created_at").Desc())
	}

	res, err := svc.Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &Result{Total: res.TotalHits()}
	for _, hit := range res.Hits.Hits {
		id, err := uuid.Parse(hit.Id)
		if err != nil {
			e.logger.WarnContext(ctx, "skipping search hit with invalid id", slog.String("id", hit.Id))
			continue
		}
		out.IDs = append(out.IDs, id)
	}
	span.SetAttributes(attribute.Int64("search.total", out.Total))
	return out, nil
}

// Source renders the query body, mainly for debugging.
func Source(q Query) (string, error) {
	src, err := BuildQuery(q).Source()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(src)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
