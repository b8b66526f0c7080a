package main

import (
	"math/rand"
	"path/filepath"
	"sort"

	"github.com/dd0wney/cluso-mergejoin/pkg/blockstore"
	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/metrics"
	"github.com/dd0wney/cluso-mergejoin/pkg/query"
)

// tableShape describes one generated input table.
type tableShape struct {
	Rows         int
	JoinColumns  int
	Payload      int
	KeyRange     int
	UndefPercent int
	// UndefLastOnly restricts UNDEF to the last join column.
	UndefLastOnly bool
	// FirstPayload numbers the payload so output rows can be traced back.
	FirstPayload int64
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// generateTable returns shape.Rows rows sorted on their join columns.
func generateTable(rng *rand.Rand, shape tableShape) []join.Row {
	n := shape.JoinColumns
	rows := make([]join.Row, shape.Rows)
	for i := range rows {
		row := make(join.Row, n+shape.Payload)
		for c := 0; c < n; c++ {
			mayUndef := !shape.UndefLastOnly || c == n-1
			if mayUndef && rng.Intn(100) < shape.UndefPercent {
				row[c] = join.Undef
				continue
			}
			row[c] = join.Value(rng.Intn(shape.KeyRange))
		}
		for p := 0; p < shape.Payload; p++ {
			row[n+p] = join.Value(shape.FirstPayload + int64(i))
		}
		rows[i] = row
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return join.CompareRows(rows[a], rows[b], n) < 0
	})
	return rows
}

// rightPayloadBase offsets right payload values so they never collide with
// left ones.
const rightPayloadBase = 1_000_000_000

type tableFile struct {
	path  string
	shape tableShape
}

// tableRole groups the kinds that read the same pair of inputs.
type tableRole string

const (
	// roleUndef tables carry UNDEF in any join column.
	roleUndef tableRole = "undef"
	// rolePlain tables carry no UNDEF; inner and optional reject it.
	rolePlain tableRole = "plain"
	// roleSpecial tables carry UNDEF only in the last left join column.
	roleSpecial tableRole = "special"
)

var roles = []tableRole{roleUndef, rolePlain, roleSpecial}

func roleOf(kind query.JoinKind) tableRole {
	switch kind {
	case query.KindInner, query.KindOptional:
		return rolePlain
	case query.KindSpecialOptional:
		return roleSpecial
	default:
		return roleUndef
	}
}

// neededRoles returns the roles of the configured kinds in a fixed order.
func neededRoles(kinds []string) []tableRole {
	seen := make(map[tableRole]bool)
	for _, name := range kinds {
		if kind, err := query.ParseKind(name); err == nil {
			seen[roleOf(kind)] = true
		}
	}
	var out []tableRole
	for _, r := range roles {
		if seen[r] {
			out = append(out, r)
		}
	}
	return out
}

// tablePair names the two block files of one role.
type tablePair struct {
	Left, Right string
}

// tableSet holds the block files written for one benchmark run.
type tableSet map[tableRole]tablePair

func pairFor(dir string, role tableRole) tablePair {
	prefix := ""
	if role != roleUndef {
		prefix = string(role) + "-"
	}
	return tablePair{
		Left:  filepath.Join(dir, prefix+"left.mjb"),
		Right: filepath.Join(dir, prefix+"right.mjb"),
	}
}

// writeTables generates every input the configured kinds need and stores
// them as block files under dir. It returns the number of rows written.
// registry may be nil.
func writeTables(cfg BenchConfig, dir string, registry *metrics.Registry) (tableSet, int, error) {
	set := make(tableSet)
	rng := newRand(cfg.Seed)
	opts := blockstore.WriterOptions{Width: cfg.Width(), JoinColumns: cfg.JoinColumns, BlockRows: cfg.BlockRows}

	base := tableShape{
		JoinColumns: cfg.JoinColumns,
		Payload:     cfg.Payload,
		KeyRange:    cfg.KeyRange,
	}
	var files []tableFile
	for _, role := range neededRoles(cfg.Kinds) {
		pair := pairFor(dir, role)
		set[role] = pair
		switch role {
		case roleUndef:
			files = append(files,
				tableFile{pair.Left, with(base, cfg.LeftRows, 0, false, cfg.UndefPercent)},
				tableFile{pair.Right, with(base, cfg.RightRows, rightPayloadBase, false, cfg.UndefPercent)},
			)
		case rolePlain:
			files = append(files,
				tableFile{pair.Left, with(base, cfg.LeftRows, 0, false, 0)},
				tableFile{pair.Right, with(base, cfg.RightRows, rightPayloadBase, false, 0)},
			)
		case roleSpecial:
			// The right input of the special join carries no UNDEF at all.
			files = append(files,
				tableFile{pair.Left, with(base, cfg.LeftRows, 0, true, cfg.UndefPercent)},
				tableFile{pair.Right, with(base, cfg.RightRows, rightPayloadBase, true, 0)},
			)
		}
	}

	written := 0
	for _, f := range files {
		rows := generateTable(rng, f.shape)
		if err := blockstore.WriteFile(f.path, rows, opts); err != nil {
			if registry != nil {
				registry.RecordBlockFileError("write")
			}
			return set, written, err
		}
		if registry != nil {
			registry.RecordBlockFileWritten(len(rows))
		}
		written += len(rows)
	}
	return set, written, nil
}

func with(base tableShape, rows int, firstPayload int64, lastOnly bool, undefPercent int) tableShape {
	base.Rows = rows
	base.FirstPayload = firstPayload
	base.UndefLastOnly = lastOnly
	base.UndefPercent = undefPercent
	return base
}
