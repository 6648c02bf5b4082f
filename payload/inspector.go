package payload

type Shape string

const (
	FeatureCollection Shape = "feature_collection"
	TabularRecords    Shape = "tabular_records"
	StationReadings   Shape = "station_readings"
	List              Shape = "list"
	Unknown           Shape = "unknown"
)

type rule struct {
	shape   Shape
	extract func(interface{}) ([]interface{}, bool)
}

// rules are tried in order; the first whose sequence is present wins. New
// payload shapes are added here and nowhere else.
var rules = []rule{
	{shape: FeatureCollection, extract: path("features")},
	{shape: TabularRecords, extract: path("result", "records")},
	{shape: StationReadings, extract: path("data", "stations")},
	{shape: List, extract: func(v interface{}) ([]interface{}, bool) {
		items, ok := v.([]interface{})
		return items, ok
	}},
}

func Detect(p Payload) Shape {
	for _, r := range rules {
		if _, ok := r.extract(p.value); ok {
			return r.shape
		}
	}
	return Unknown
}

// Count is the number of records in p, or 0 when no known shape matches.
func Count(p Payload) int {
	for _, r := range rules {
		if items, ok := r.extract(p.value); ok {
			return len(items)
		}
	}
	return 0
}

func path(keys ...string) func(interface{}) ([]interface{}, bool) {
	return func(v interface{}) ([]interface{}, bool) {
		current := v
		for _, key := range keys {
			object, ok := current.(map[string]interface{})
			if !ok {
				return nil, false
			}
			current, ok = object[key]
			if !ok {
				return nil, false
			}
		}
		items, ok := current.([]interface{})
		return items, ok
	}
}
