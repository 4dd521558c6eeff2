package internal

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// RenderBatchSummary formats per-video outcomes and the success/skipped/failed
// totals of a batch command.
func RenderBatchSummary(summary *BatchSummary) string {
	var sb strings.Builder

	if len(summary.Outcomes) > 0 {
		rows := make([][]string, 0, len(summary.Outcomes))
		for _, o := range summary.Outcomes {
			rows = append(rows, []string{o.VideoID, truncate(o.Title, 40), string(o.Outcome), truncate(o.Detail, 60)})
		}
		sb.WriteString(renderTable(
			[]string{"Video", "Title", "Outcome", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
		))
		sb.WriteString("\n")
	}

	success, skipped, failed := summary.Counts()
	sb.WriteString(fmt.Sprintf("%d succeeded, %d skipped, %d failed\n", success, skipped, failed))
	return sb.String()
}

// RenderSnapshotTables formats the per-bucket statistics and drift sequence.
func RenderSnapshotTables(s *Snapshot) string {
	var sb strings.Builder

	bucketRows := make([][]string, 0, len(s.Buckets))
	for _, b := range s.Buckets {
		dispersion := "undefined"
		if b.Defined {
			dispersion = fmt.Sprintf("%.4f", b.Dispersion)
		}
		bucketRows = append(bucketRows, []string{
			b.Bucket,
			fmt.Sprintf("%d", b.Count),
			formatCoords(b.Centroid),
			dispersion,
		})
	}
	sb.WriteString(renderTable(
		[]string{"Bucket", "Videos", "Centroid", "Dispersion"},
		bucketRows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
	))
	sb.WriteString("\n")

	if len(s.Drifts) > 0 {
		driftRows := make([][]string, 0, len(s.Drifts))
		for _, d := range s.Drifts {
			value := "undefined"
			if d.Defined {
				value = fmt.Sprintf("%.4f", d.Value)
			}
			driftRows = append(driftRows, []string{d.From + " -> " + d.To, value})
		}
		sb.WriteString(renderTable(
			[]string{"Transition", "Drift"},
			driftRows,
			[]columnAlignment{alignLeft, alignRight},
		))
		sb.WriteString("\n")
	}

	return sb.String()
}

// SnapshotMarkdown builds the reviewable drift report as markdown, for
// terminal rendering or saving.
func SnapshotMarkdown(s *Snapshot) string {
	var sb strings.Builder

	filter := "all topics"
	if len(s.Labels) > 0 {
		filter = strings.Join(s.Labels, ", ")
	}

	sb.WriteString(fmt.Sprintf("# Topic drift: %s\n\n", filter))
	sb.WriteString(fmt.Sprintf("- Videos: %d across %d %s bucket(s)\n", len(s.Points), len(s.Buckets), s.Granularity))
	sb.WriteString(fmt.Sprintf("- Embedding model: `%s`\n", s.EmbeddingModel))
	sb.WriteString(fmt.Sprintf("- Reduction: `%s`, %d dims, seed %d\n", s.Algorithm, s.Dims, s.Seed))
	sb.WriteString(fmt.Sprintf("- Corpus dispersion: %.4f\n\n", s.CorpusDispersion))

	sb.WriteString("## Drift between buckets\n\n")
	if len(s.Drifts) == 0 {
		sb.WriteString("Only one bucket; no transitions to measure.\n")
	}
	for _, d := range s.Drifts {
		if d.Defined {
			sb.WriteString(fmt.Sprintf("- **%s -> %s**: %.4f\n", d.From, d.To, d.Value))
		} else {
			sb.WriteString(fmt.Sprintf("- **%s -> %s**: undefined (bucket below %d videos)\n", d.From, d.To, s.MinBucketSize))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Coordinates\n\n")
	for _, p := range s.Points {
		sb.WriteString(fmt.Sprintf("- `%s` [%s] %s: %s\n", p.VideoID, p.Bucket, truncate(p.Title, 50), formatCoords(p.Coords)))
	}

	return sb.String()
}

func formatCoords(coords []float64) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%.4f", c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// RenderStatusCounts formats the per-status video distribution.
func RenderStatusCounts(counts []StatusCount) string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{string(c.Status), fmt.Sprintf("%d", c.Count)})
	}
	return renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

// RenderCategoryCounts formats the overall label distribution.
func RenderCategoryCounts(counts []LabelCount) string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Label, fmt.Sprintf("%d", c.Count)})
	}
	return renderTable([]string{"Category", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

// RenderCategoryCountsByMonth formats the per-month label distribution.
func RenderCategoryCountsByMonth(counts []MonthLabelCount) string {
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.YearMonth, c.Label, fmt.Sprintf("%d", c.Count)})
	}
	return renderTable([]string{"Month", "Category", "Count"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}
