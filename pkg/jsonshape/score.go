package jsonshape

// epsilon is the ε term of spec.md §4.4's confidence formula. The
// both-scores-zero case never reaches the division: Evaluate returns
// confidence 0.5 for it directly.
const epsilon = 1e-9

// Score holds the two structural scores and the resulting decision,
// computed per spec.md §4.4's exact point-weighted formula.
type Score struct {
	SQLScore   float64
	NoSQLScore float64
	Backing    string
	Confidence float64
	Reasons    []string
}

// contribution is one scored signal and the label it contributes to
// Reasons when its side wins (or "weak" when its side loses).
type contribution struct {
	points float64
	label  string
}

// Evaluate computes SQLscore/NoSQLscore from m and resolves the
// relational-vs-document decision. Ties resolve to "document" per
// spec.md §9's fixed policy. Reasons lists the winning side's non-zero
// contribution labels, followed by any non-zero losing-side
// contribution flagged as a weak counter-signal.
func Evaluate(m Metrics) Score {
	var sqlContribs []contribution
	if m.SchemaConsistency > 0.90 {
		sqlContribs = append(sqlContribs, contribution{3.0, "schema consistency > 0.90"})
	}
	if m.MaxDepth <= 2 {
		sqlContribs = append(sqlContribs, contribution{2.5, "max depth <= 2"})
	}
	if !m.HasArrays {
		sqlContribs = append(sqlContribs, contribution{1.5, "no arrays"})
	} else if !m.HasNestedArrays {
		sqlContribs = append(sqlContribs, contribution{1.0, "arrays are flat"})
	}
	if allFieldsAtLeast(m.FieldPresence, 0.80) {
		sqlContribs = append(sqlContribs, contribution{2.0, "all fields present >= 0.80"})
	}
	if m.TypeConsistency == 1.0 {
		sqlContribs = append(sqlContribs, contribution{2.0, "type consistency == 1.0"})
	}

	var nosqlContribs []contribution
	if m.SchemaConsistency < 0.70 {
		nosqlContribs = append(nosqlContribs, contribution{2.5, "schema consistency < 0.70"})
	}
	if m.MaxDepth > 4 {
		nosqlContribs = append(nosqlContribs, contribution{3.0, "max depth > 4"})
	}
	if m.HasNestedArrays {
		nosqlContribs = append(nosqlContribs, contribution{2.5, "has nested arrays"})
	}
	if anyFieldBelow(m.FieldPresence, 0.50) {
		nosqlContribs = append(nosqlContribs, contribution{2.0, "some field present < 0.50"})
	}
	if m.HasMixedTypes {
		nosqlContribs = append(nosqlContribs, contribution{1.5, "mixed types"})
	}

	sql := sumContribs(sqlContribs)
	nosql := sumContribs(nosqlContribs)

	backing := "document"
	winner := nosql
	winning, losing := nosqlContribs, sqlContribs
	if sql > nosql {
		backing = "relational"
		winner = sql
		winning, losing = sqlContribs, nosqlContribs
	}

	confidence := 0.5
	if sql != 0 || nosql != 0 {
		confidence = winner / (sql + nosql + epsilon)
	}

	var reasons []string
	for _, c := range winning {
		reasons = append(reasons, c.label)
	}
	for _, c := range losing {
		reasons = append(reasons, c.label+" (weak)")
	}

	return Score{
		SQLScore:   sql,
		NoSQLScore: nosql,
		Backing:    backing,
		Confidence: confidence,
		Reasons:    reasons,
	}
}

func sumContribs(contribs []contribution) float64 {
	total := 0.0
	for _, c := range contribs {
		total += c.points
	}
	return total
}

func allFieldsAtLeast(presence map[string]float64, threshold float64) bool {
	if len(presence) == 0 {
		return true
	}
	for _, p := range presence {
		if p < threshold {
			return false
		}
	}
	return true
}

func anyFieldBelow(presence map[string]float64, threshold float64) bool {
	for _, p := range presence {
		if p < threshold {
			return true
		}
	}
	return false
}
