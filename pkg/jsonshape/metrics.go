package jsonshape

// Metrics is the structural measurement record spec.md §4.4 requires.
type Metrics struct {
	MaxDepth              int
	TotalObjects          int
	UniqueFields          int
	TotalFieldOccurrences int
	FieldPresence         map[string]float64
	SchemaConsistency     float64
	TypeConsistency       float64
	HasNestedArrays       bool
	HasArrays             bool
	HasMixedTypes         bool
}

type accumulator struct {
	maxDepth              int
	totalObjects          int
	totalFieldOccurrences int
	fieldKinds            map[string]map[Kind]struct{}
	fieldPresenceSamples  map[string][]float64
	hasNestedArrays       bool
	hasArrays             bool
}

// Analyze walks root exactly once and produces its Metrics, per spec.md
// §4.4 and §9's "single recursive function, no reflection" design note.
func Analyze(root JsonValue) Metrics {
	acc := &accumulator{
		fieldKinds:           map[string]map[Kind]struct{}{},
		fieldPresenceSamples: map[string][]float64{},
	}
	acc.visit(root, 1, false)
	return acc.finalize()
}

func (a *accumulator) visit(node JsonValue, depth int, insideArray bool) {
	switch node.Kind {
	case KindObject:
		a.visitObjectGroup([]JsonValue{node}, depth, insideArray)
	case KindArray:
		a.hasArrays = true
		if insideArray {
			a.hasNestedArrays = true
		}
		if len(node.Array) > 0 && allObjects(node.Array) {
			a.visitObjectGroup(node.Array, depth+1, true)
			return
		}
		for _, elem := range node.Array {
			if isScalar(elem) {
				if depth > a.maxDepth {
					a.maxDepth = depth
				}
				continue
			}
			a.visit(elem, depth+1, true)
		}
	default:
		if depth > a.maxDepth {
			a.maxDepth = depth
		}
	}
}

// visitObjectGroup processes a set of object-peers sharing one parent
// context (spec.md §4.4's "object-peers" — array elements, or the single
// root/standalone object), computing per-field presence across the group.
func (a *accumulator) visitObjectGroup(members []JsonValue, depth int, insideArray bool) {
	a.totalObjects += len(members)
	n := len(members)

	presentCount := map[string]int{}
	for _, m := range members {
		for k := range m.Object {
			presentCount[k]++
		}
	}
	for k, c := range presentCount {
		a.fieldPresenceSamples[k] = append(a.fieldPresenceSamples[k], float64(c)/float64(n))
	}

	for _, m := range members {
		for k, v := range m.Object {
			a.totalFieldOccurrences++
			a.recordKind(k, v.primitiveKind())
			if isScalar(v) {
				if depth > a.maxDepth {
					a.maxDepth = depth
				}
				continue
			}
			a.visit(v, depth+1, insideArray)
		}
	}
}

func (a *accumulator) recordKind(field string, kind Kind) {
	kinds, ok := a.fieldKinds[field]
	if !ok {
		kinds = map[Kind]struct{}{}
		a.fieldKinds[field] = kinds
	}
	kinds[kind] = struct{}{}
}

func (a *accumulator) finalize() Metrics {
	presence := map[string]float64{}
	for field, samples := range a.fieldPresenceSamples {
		sum := 0.0
		for _, s := range samples {
			sum += s
		}
		presence[field] = sum / float64(len(samples))
	}

	schemaConsistency := 0.0
	if len(presence) > 0 {
		sum := 0.0
		for _, p := range presence {
			sum += p
		}
		schemaConsistency = sum / float64(len(presence))
	}

	singleKindFields := 0
	for _, kinds := range a.fieldKinds {
		if len(kinds) == 1 {
			singleKindFields++
		}
	}
	typeConsistency := 0.0
	if len(a.fieldKinds) > 0 {
		typeConsistency = float64(singleKindFields) / float64(len(a.fieldKinds))
	}

	maxDepth := a.maxDepth
	if maxDepth == 0 {
		maxDepth = 1
	}

	hasMixedTypes := false
	for _, kinds := range a.fieldKinds {
		if len(kinds) > 1 {
			hasMixedTypes = true
			break
		}
	}

	return Metrics{
		MaxDepth:              maxDepth,
		TotalObjects:          a.totalObjects,
		UniqueFields:          len(a.fieldKinds),
		TotalFieldOccurrences: a.totalFieldOccurrences,
		FieldPresence:         presence,
		SchemaConsistency:     schemaConsistency,
		TypeConsistency:       typeConsistency,
		HasNestedArrays:       a.hasNestedArrays,
		HasArrays:             a.hasArrays,
		HasMixedTypes:         hasMixedTypes,
	}
}

func allObjects(vs []JsonValue) bool {
	for _, v := range vs {
		if v.Kind != KindObject {
			return false
		}
	}
	return true
}

func isScalar(v JsonValue) bool {
	switch v.Kind {
	case KindNull, KindBool, KindNumber, KindString:
		return true
	default:
		return false
	}
}
