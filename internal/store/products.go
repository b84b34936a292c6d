package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/types"
)

// schemaDefinitionSchema is the JSON Schema a product's schema_definition is
// checked against. Products that fail are still returned; the renderer reports
// them as unsupported.
const schemaDefinitionSchema = `{
	"type": "object",
	"required": ["score_structure", "scale"],
	"properties": {
		"score_structure": {"type": "string", "enum": ["multi_dimension", "subscore"]},
		"dimensions": {"type": "array", "items": {"type": "string"}},
		"subscores": {"type": "array", "items": {"type": "string"}},
		"scale": {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2},
		"has_photo_analysis": {"type": "boolean"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(schemaDefinitionSchema)

// ValidateSchemaDefinition checks a raw schema_definition document.
func ValidateSchemaDefinition(doc []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("schema_definition validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

type ProductStore struct {
	db  Querier
	log *logger.Logger
}

func NewProductStore(db Querier, log *logger.Logger) *ProductStore {
	return &ProductStore{db: db, log: log.Component("product-store")}
}

const selectProducts = `SELECT id, product, COALESCE(domain, ''), COALESCE(brand, ''), schema_definition, ui_config, created_at
	FROM products ORDER BY created_at ASC`

// Fetch returns every product in creation order.
func (s *ProductStore) Fetch(ctx context.Context) ([]types.Product, error) {
	rows, err := s.db.QueryContext(ctx, selectProducts)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []types.Product{}
	for rows.Next() {
		var (
			p          types.Product
			schema, ui []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Domain, &p.Brand, &schema, &ui, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		log := s.log.WithField("product_id", p.ID)

		if len(schema) > 0 {
			if err := ValidateSchemaDefinition(schema); err != nil {
				log.WithField("error", err.Error()).Warn("invalid schema_definition")
			}
			if err := json.Unmarshal(schema, &p.Schema); err != nil {
				log.WithField("error", err.Error()).Warn("undecodable schema_definition")
				p.Schema = types.SchemaDefinition{}
			}
		}
		if len(ui) > 0 {
			if err := json.Unmarshal(ui, &p.UI); err != nil {
				log.WithField("error", err.Error()).Warn("undecodable ui_config")
			}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
