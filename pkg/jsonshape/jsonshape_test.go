package jsonshape

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) JsonValue {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return FromAny(v)
}

func TestArrayOfUniformObjectsFavorsRelational(t *testing.T) {
	root := parse(t, `[{"id":1,"name":"A","price":9.99},{"id":2,"name":"B","price":19.99},{"id":3,"name":"C","price":29.99}]`)
	m := Analyze(root)
	require.Equal(t, 2, m.MaxDepth)
	require.Equal(t, 1.0, m.SchemaConsistency)
	require.Equal(t, 1.0, m.TypeConsistency)
	require.False(t, m.HasNestedArrays)

	score := Evaluate(m)
	require.Equal(t, "relational", score.Backing)
	require.Greater(t, score.SQLScore, score.NoSQLScore)
}

func TestDeeplyNestedObjectFavorsDocument(t *testing.T) {
	root := parse(t, `{"u":{"p":{"c":[{"t":"e","v":"x"},{"t":"p","v":"y"}],"pref":{"n":{"e":true,"s":false}}}}}`)
	m := Analyze(root)
	require.Equal(t, 5, m.MaxDepth)
	require.True(t, m.HasNestedArrays)

	score := Evaluate(m)
	require.Equal(t, "document", score.Backing)
	require.Greater(t, score.Confidence, 0.5)
}

func TestTieGoesToDocument(t *testing.T) {
	m := Metrics{
		SchemaConsistency: 0.6,
		MaxDepth:           2,
		HasArrays:          false,
		FieldPresence:      map[string]float64{"a": 0.6},
		TypeConsistency:    0.5,
		HasMixedTypes:      true,
		HasNestedArrays:    false,
	}
	// Hand-construct metrics whose scores tie: maxDepth<=2 and no arrays
	// give SQL=2.5+1.5=4; schemaConsistency<0.70 and mixed types give
	// NoSQL=2.5+1.5=4. Field presence 0.6 trips neither the >=0.80 nor
	// the <0.50 rule.
	score := Evaluate(m)
	require.Equal(t, 4.0, score.SQLScore)
	require.Equal(t, 4.0, score.NoSQLScore)
	require.Equal(t, "document", score.Backing)
	require.InDelta(t, 0.5, score.Confidence, 1e-6)
}

func TestEmptyObjectScoresRelational(t *testing.T) {
	// {} has no fields: depth 1 (+2.5), no arrays (+1.5) and the vacuous
	// all-fields-present rule (+2.0) give SQL=6; schemaConsistency 0
	// gives NoSQL=2.5. Confidence is 6/8.5.
	root := parse(t, `{}`)
	m := Analyze(root)
	score := Evaluate(m)
	require.InDelta(t, 6.0/8.5, score.Confidence, 1e-6)
	require.Equal(t, "relational", score.Backing)
}

func TestDeepNestingAtLeast10ProducesDocumentWithHighConfidence(t *testing.T) {
	// Build a chain 10 levels deep: {"a":{"a":{"a": ... "leaf": 1}}}
	raw := "1"
	for i := 0; i < 10; i++ {
		raw = `{"a":` + raw + `}`
	}
	root := parse(t, raw)
	m := Analyze(root)
	require.GreaterOrEqual(t, m.MaxDepth, 10)

	score := Evaluate(m)
	require.Equal(t, "document", score.Backing)
	require.Greater(t, score.Confidence, 0.7)
}
