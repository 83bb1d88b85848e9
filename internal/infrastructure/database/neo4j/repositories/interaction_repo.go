package repositories

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	driver "github.com/turtacn/CureAnalytics/internal/infrastructure/database/neo4j"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Compounds are keyed by lowercase name; pairs are stored once, smaller key
// first, with one relationship per interaction type.  The relationship keeps
// the worst severity seen and the set of papers reporting it.
const (
	cypherRecordInteractions = `
		UNWIND $rows AS row
		MERGE (a:Compound {key: row.a_key})
		  ON CREATE SET a.name = row.a_name
		MERGE (b:Compound {key: row.b_key})
		  ON CREATE SET b.name = row.b_name
		MERGE (a)-[r:INTERACTS_WITH {type: row.type}]->(b)
		  ON CREATE SET r.severity = row.severity, r.severity_rank = row.rank, r.papers = []
		SET r.papers = CASE WHEN $paper IN r.papers THEN r.papers ELSE r.papers + $paper END
		FOREACH (_ IN CASE WHEN row.rank > r.severity_rank THEN [1] ELSE [] END |
		  SET r.severity = row.severity, r.severity_rank = row.rank)`

	cypherPartners = `
		MATCH (c:Compound {key: $key})-[r:INTERACTS_WITH]-(p:Compound)
		RETURN p.name AS compound, r.type AS type, r.severity AS severity, size(r.papers) AS papers
		ORDER BY papers DESC, compound ASC
		LIMIT $limit`

	cypherConstraint = `CREATE CONSTRAINT compound_key IF NOT EXISTS FOR (c:Compound) REQUIRE c.key IS UNIQUE`
)

// InteractionRepository is the Neo4j-backed interaction graph.
type InteractionRepository struct {
	driver driver.DriverInterface
	log    logging.Logger
}

// NewInteractionRepository returns a repository on d.
func NewInteractionRepository(d driver.DriverInterface, log logging.Logger) *InteractionRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &InteractionRepository{driver: d, log: log}
}

// EnsureConstraints creates the compound uniqueness constraint.
func (r *InteractionRepository) EnsureConstraints(ctx context.Context) error {
	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		_, err := tx.Run(ctx, cypherConstraint, nil)
		return nil, err
	})
	return err
}

// RecordInteractions merges the interactions reported by one paper.
// Self-pairs and blank names are skipped.
func (r *InteractionRepository) RecordInteractions(ctx context.Context, paperID string, interactions []pharma.DrugInteraction) error {
	if paperID == "" {
		return errors.InvalidParam("paper id is required")
	}
	rows := interactionRows(interactions)
	if len(rows) == 0 {
		return nil
	}
	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherRecordInteractions, map[string]any{"rows": rows, "paper": paperID})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return err
	}
	r.log.Debug("interactions recorded", logging.String("paper_id", paperID), logging.Int("pairs", len(rows)))
	return nil
}

// Partners lists compounds observed interacting with compound, most reported
// first.
func (r *InteractionRepository) Partners(ctx context.Context, compound string, limit int) ([]pharma.InteractionPartner, error) {
	key := strings.ToLower(strings.TrimSpace(compound))
	if key == "" {
		return nil, errors.InvalidParam("compound is required")
	}
	if limit <= 0 {
		limit = 20
	}
	out, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherPartners, map[string]any{"key": key, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, res, mapPartner)
	})
	if err != nil {
		return nil, err
	}
	return out.([]pharma.InteractionPartner), nil
}

func interactionRows(interactions []pharma.DrugInteraction) []map[string]any {
	rows := make([]map[string]any, 0, len(interactions))
	for _, in := range interactions {
		aName, bName := strings.TrimSpace(in.Compound1), strings.TrimSpace(in.Compound2)
		aKey, bKey := strings.ToLower(aName), strings.ToLower(bName)
		if aKey == "" || bKey == "" || aKey == bKey {
			continue
		}
		if bKey < aKey {
			aKey, bKey = bKey, aKey
			aName, bName = bName, aName
		}
		rows = append(rows, map[string]any{
			"a_key":    aKey,
			"a_name":   aName,
			"b_key":    bKey,
			"b_name":   bName,
			"type":     string(in.InteractionType),
			"severity": string(in.Severity),
			"rank":     severityRank(in.Severity),
		})
	}
	return rows
}

func severityRank(s pharma.Severity) int64 {
	switch s {
	case pharma.SeverityMild:
		return 1
	case pharma.SeverityModerate:
		return 2
	case pharma.SeveritySevere:
		return 3
	}
	return 0
}

func mapPartner(rec *neo4j.Record) (pharma.InteractionPartner, error) {
	name, _, err := neo4j.GetRecordValue[string](rec, "compound")
	if err != nil {
		return pharma.InteractionPartner{}, err
	}
	typ, _, err := neo4j.GetRecordValue[string](rec, "type")
	if err != nil {
		return pharma.InteractionPartner{}, err
	}
	sev, _, err := neo4j.GetRecordValue[string](rec, "severity")
	if err != nil {
		return pharma.InteractionPartner{}, err
	}
	papers, _, err := neo4j.GetRecordValue[int64](rec, "papers")
	if err != nil {
		return pharma.InteractionPartner{}, err
	}
	return pharma.InteractionPartner{
		Compound:        name,
		InteractionType: pharma.InteractionType(typ),
		Severity:        pharma.Severity(sev),
		PaperCount:      int(papers),
	}, nil
}
