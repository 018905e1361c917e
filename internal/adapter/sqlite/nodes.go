package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/transit-weather-etl/internal/domain"
)

const upsertNodeSQL = `INSERT INTO t_nodes (sncf_id, name, lat, lon)
VALUES (?, ?, ?, ?)
ON CONFLICT (sncf_id) DO UPDATE
SET name = excluded.name,
    lat = excluded.lat,
    lon = excluded.lon`

// UpsertNodes writes nodes keyed by their SNCF identifier.
func (s *Store) UpsertNodes(ctx context.Context, nodes []domain.Node) (int, error) {
	return upsertEach(ctx, s, TableNodes, upsertNodeSQL, nodes, func(n domain.Node) []any {
		return []any{n.SNCFID, n.Name, n.Lat, n.Lon}
	})
}

// ListNodes returns every node in insertion order.
func (s *Store) ListNodes(ctx context.Context) ([]domain.Node, error) {
	return s.queryNodes(ctx, `SELECT id, sncf_id, name, lat, lon FROM t_nodes ORDER BY id`)
}

// ListNodesWithoutCommune returns the nodes that have no successful commune
// lookup yet (never looked up, or last lookup failed).
func (s *Store) ListNodesWithoutCommune(ctx context.Context) ([]domain.Node, error) {
	return s.queryNodes(ctx, `
SELECT n.id, n.sncf_id, n.name, n.lat, n.lon
FROM t_nodes n
LEFT JOIN t_insee i ON i.node_id = n.id
WHERE i.id IS NULL OR i.error_message IS NOT NULL
ORDER BY n.id`)
}

func (s *Store) queryNodes(ctx context.Context, query string) ([]domain.Node, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		var n domain.Node
		if err := rows.Scan(&n.ID, &n.SNCFID, &n.Name, &n.Lat, &n.Lon); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// LocatedNodes returns the nodes whose commune lookup produced a department
// code, tagged with that code. Nodes without one cannot be matched to a
// station and are left out.
func (s *Store) LocatedNodes(ctx context.Context) ([]domain.LocatedNode, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT n.id, n.sncf_id, n.name, n.lat, n.lon, i.department_code
FROM t_nodes n
JOIN t_insee i ON i.node_id = n.id
WHERE i.department_code IS NOT NULL AND i.department_code <> ''
ORDER BY n.id`)
	if err != nil {
		return nil, fmt.Errorf("query located nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.LocatedNode
	for rows.Next() {
		var (
			n    domain.LocatedNode
			dept sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.SNCFID, &n.Name, &n.Lat, &n.Lon, &dept); err != nil {
			return nil, fmt.Errorf("scan located node: %w", err)
		}
		n.DepartmentCode = dept.String
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
