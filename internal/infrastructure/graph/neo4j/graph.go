// Package neo4j records provenance edges for verified scans: which
// manufacturers produce which products, and how often each product was
// confirmed. The graph backs offline counterfeit-cluster analysis and is an
// optional part of the deployment.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

type Graph struct {
	driver neo4j.DriverWithContext
}

func New(uri, username, password string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Graph{driver: driver}, nil
}

func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

const provenanceQuery = `
MERGE (m:Manufacturer {name: $manufacturer})
MERGE (p:Product {ndc: $ndc})
SET p.name = $name
MERGE (m)-[r:PRODUCES]->(p)
ON CREATE SET r.first_seen = datetime($seen_at), r.scans = 1
ON MATCH SET r.scans = r.scans + 1
`

func (g *Graph) RecordProvenance(ctx context.Context, scan domain.ScanRecord) error {
	manufacturer := scan.Manufacturer
	if manufacturer == "" {
		manufacturer = "unknown"
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, provenanceQuery, map[string]any{
			"manufacturer": manufacturer,
			"ndc":          scan.MatchedNDC,
			"name":         scan.MatchedName,
			"seen_at":      scan.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("merge provenance for scan %s: %w", scan.ID, err)
	}
	return nil
}
