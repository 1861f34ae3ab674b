package db

import (
	"database/sql"
	"fmt"

	"github.com/LenBoer/distributed-storage-visualization/internal/ceph"
	"github.com/LenBoer/distributed-storage-visualization/internal/export"
)

// SaveTree stores the CRUSH hierarchy of a run in report order
func (d *DB) SaveTree(runID string, tree *ceph.Tree) error {
	err := d.withTx(func(tx *sql.Tx) error {
		return insertEach(tx, `
			INSERT INTO crush_nodes (
				run_id, position, node_id, name, kind, bucket_type, device_class,
				parent_id, weight, residual, status, reweight, primary_affinity
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, len(tree.Nodes), func(i int) []any {
			n := tree.Nodes[i]
			return []any{
				runID, i, n.ID, n.Name, string(n.Kind), nullString(n.BucketType), nullString(n.DeviceClass),
				nullString(n.ParentID), n.Weight, n.Residual, nullString(n.Status), n.Reweight, n.PrimaryAffinity,
			}
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save tree: %w", err)
	}
	return nil
}

// GetTree loads the hierarchy stored for a run
func (d *DB) GetTree(runID string) (*ceph.Tree, error) {
	rows, err := d.conn.Query(`
		SELECT node_id, name, kind, bucket_type, device_class, parent_id,
			weight, residual, status, reweight, primary_affinity
		FROM crush_nodes
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tree: %w", err)
	}
	defer rows.Close()

	tree := &ceph.Tree{}
	for rows.Next() {
		var n ceph.Node
		var kind string
		var bucketType, class, parent, status sql.NullString

		err := rows.Scan(
			&n.ID, &n.Name, &kind, &bucketType, &class, &parent,
			&n.Weight, &n.Residual, &status, &n.Reweight, &n.PrimaryAffinity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Kind = ceph.NodeKind(kind)
		n.BucketType = bucketType.String
		n.DeviceClass = class.String
		n.ParentID = parent.String
		n.Status = status.String

		tree.Nodes = append(tree.Nodes, n)
	}
	return tree, rows.Err()
}

// SavePGDump stores the three record sets of a placement report
func (d *DB) SavePGDump(runID string, dump *ceph.PGDump) error {
	ups, err := jsonColumn(dump.PlacementGroups, func(pg ceph.PlacementGroup) any { return pg.Up })
	if err != nil {
		return fmt.Errorf("failed to encode up sets: %w", err)
	}
	peers, err := jsonColumn(dump.Devices, func(dev ceph.Device) any { return dev.HeartbeatPeers })
	if err != nil {
		return fmt.Errorf("failed to encode hb peers: %w", err)
	}

	err = d.withTx(func(tx *sql.Tx) error {
		err := insertEach(tx, `
			INSERT INTO placement_groups (
				run_id, pgid, pool, pg_num, objects, bytes, disk_log, state, up_json, up_primary
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, len(dump.PlacementGroups), func(i int) []any {
			pg := dump.PlacementGroups[i]
			return []any{
				runID, pg.PGID, pg.Pool, pg.PGNum, pg.Objects, pg.Bytes, pg.DiskLog,
				pg.State, ups[i], pg.UpPrimary,
			}
		})
		if err != nil {
			return fmt.Errorf("placement groups: %w", err)
		}

		err = insertEach(tx, `
			INSERT INTO pools (run_id, pool_id, objects, bytes, omap_bytes, omap_keys, log, disk_log)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, len(dump.Pools), func(i int) []any {
			p := dump.Pools[i]
			return []any{runID, p.ID, p.Objects, p.Bytes, p.OmapBytes, p.OmapKeys, p.Log, p.DiskLog}
		})
		if err != nil {
			return fmt.Errorf("pools: %w", err)
		}

		err = insertEach(tx, `
			INSERT INTO osds (run_id, osd_id, used, available, total, hb_peers_json, pg_sum, primary_pg_sum)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, len(dump.Devices), func(i int) []any {
			dev := dump.Devices[i]
			return []any{
				runID, dev.ID, dev.Used, dev.Available, dev.Total,
				peers[i], dev.PGs, dev.PrimaryPGs,
			}
		})
		if err != nil {
			return fmt.Errorf("osds: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save pg dump: %w", err)
	}
	return nil
}

// GetPlacementGroups returns the placement group records of a run in report order
func (d *DB) GetPlacementGroups(runID string) ([]ceph.PlacementGroup, error) {
	rows, err := d.conn.Query(`
		SELECT pgid, pool, pg_num, objects, bytes, disk_log, state, up_json, up_primary
		FROM placement_groups
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query placement groups: %w", err)
	}
	defer rows.Close()

	var pgs []ceph.PlacementGroup
	for rows.Next() {
		var pg ceph.PlacementGroup
		var state, up sql.NullString

		err := rows.Scan(&pg.PGID, &pg.Pool, &pg.PGNum, &pg.Objects, &pg.Bytes, &pg.DiskLog, &state, &up, &pg.UpPrimary)
		if err != nil {
			return nil, fmt.Errorf("failed to scan placement group: %w", err)
		}
		pg.State = state.String
		if up.Valid {
			if err := export.Unmarshal([]byte(up.String), &pg.Up); err != nil {
				return nil, fmt.Errorf("pg %s: bad up set: %w", pg.PGID, err)
			}
		}

		pgs = append(pgs, pg)
	}
	return pgs, rows.Err()
}

// GetPGDump reassembles the three record sets of a stored placement report
func (d *DB) GetPGDump(runID string) (*ceph.PGDump, error) {
	var (
		dump ceph.PGDump
		err  error
	)
	if dump.PlacementGroups, err = d.GetPlacementGroups(runID); err != nil {
		return nil, err
	}
	if dump.Pools, err = d.GetPools(runID); err != nil {
		return nil, err
	}
	if dump.Devices, err = d.GetDevices(runID); err != nil {
		return nil, err
	}
	return &dump, nil
}

// GetDevices returns the OSD records of a run ordered by id
func (d *DB) GetDevices(runID string) ([]ceph.Device, error) {
	rows, err := d.conn.Query(`
		SELECT osd_id, used, available, total, hb_peers_json, pg_sum, primary_pg_sum
		FROM osds
		WHERE run_id = ?
		ORDER BY osd_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query osds: %w", err)
	}
	defer rows.Close()

	var devs []ceph.Device
	for rows.Next() {
		var dev ceph.Device
		var peers sql.NullString

		err := rows.Scan(&dev.ID, &dev.Used, &dev.Available, &dev.Total, &peers, &dev.PGs, &dev.PrimaryPGs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan osd: %w", err)
		}
		if peers.Valid {
			if err := export.Unmarshal([]byte(peers.String), &dev.HeartbeatPeers); err != nil {
				return nil, fmt.Errorf("osd %d: bad hb_peers: %w", dev.ID, err)
			}
		}

		devs = append(devs, dev)
	}
	return devs, rows.Err()
}

// GetPools returns the pool records of a run ordered by id
func (d *DB) GetPools(runID string) ([]ceph.Pool, error) {
	rows, err := d.conn.Query(`
		SELECT pool_id, objects, bytes, omap_bytes, omap_keys, log, disk_log
		FROM pools
		WHERE run_id = ?
		ORDER BY pool_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []ceph.Pool
	for rows.Next() {
		var p ceph.Pool
		if err := rows.Scan(&p.ID, &p.Objects, &p.Bytes, &p.OmapBytes, &p.OmapKeys, &p.Log, &p.DiskLog); err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}
