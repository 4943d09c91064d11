// Package query turns list-endpoint query strings into MongoDB filters and find options.
//
//	?flt=brand:NIKE,PUMA;price:100 to 500,1000 to 2000&sort=-avgRating,price&fields=title,price&limit=10
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
)

// inFields maps filter names to the document paths matched with $in.
var inFields = map[string]string{
	"gender":   "gender",
	"brand":    "brand",
	"category": "category",
	"color":    "selection.color",
	"size":     "selection.size",
}

// versionField is the legacy document version key hidden from every listing by default.
const versionField = "__v"

// Spec is a parsed list request.
type Spec struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Limit      int64
}

// Parse reads flt, sort, fields and limit. Each is optional; unknown filter fields are ignored.
func Parse(values url.Values) (Spec, error) {
	spec := Spec{Filter: bson.M{}}

	var err error
	if spec.Filter, err = parseFilter(values.Get("flt")); err != nil {
		return Spec{}, err
	}
	if spec.Sort, err = parseSort(values.Get("sort")); err != nil {
		return Spec{}, err
	}
	if spec.Projection, err = parseFields(values.Get("fields")); err != nil {
		return Spec{}, err
	}
	if spec.Limit, err = parseLimit(values.Get("limit")); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// FindOptions renders the sort, projection and limit.
func (s Spec) FindOptions() *options.FindOptions {
	opts := options.Find()
	if len(s.Sort) > 0 {
		opts.SetSort(s.Sort)
	}
	if len(s.Projection) > 0 {
		opts.SetProjection(s.Projection)
	}
	if s.Limit > 0 {
		opts.SetLimit(s.Limit)
	}
	return opts
}

// Protect makes sure none of fields can be selected, whatever the caller asked for.
func (s *Spec) Protect(fields ...string) {
	if s.Projection == nil {
		s.Projection = bson.M{}
	}
	if isInclusion(s.Projection) {
		for _, f := range fields {
			delete(s.Projection, f)
		}
		if len(withoutID(s.Projection)) > 0 {
			return
		}
		// nothing left to include; fall back to excluding
		s.Projection = bson.M{}
	}
	for _, f := range fields {
		s.Projection[f] = 0
	}
}

// And narrows the filter with an extra condition, for scoped listings.
func (s *Spec) And(key string, value any) {
	if s.Filter == nil {
		s.Filter = bson.M{}
	}
	s.Filter[key] = value
}

func parseFilter(raw string) (bson.M, error) {
	filter := bson.M{}
	if strings.TrimSpace(raw) == "" {
		return filter, nil
	}

	for _, segment := range strings.Split(raw, ";") {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		field, list, ok := strings.Cut(segment, ":")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, apperrors.Validation(fmt.Sprintf("Invalid filter %q, expected field:value1,value2", segment), nil)
		}
		values := splitValues(list)
		if len(values) == 0 {
			return nil, apperrors.Validation(fmt.Sprintf("Filter %q has no values", field), nil)
		}

		switch field {
		case "price":
			ranges, err := priceRanges(values)
			if err != nil {
				return nil, err
			}
			filter["$or"] = ranges
		case "avgRating":
			min, err := strconv.ParseFloat(values[0], 64)
			if err != nil {
				return nil, apperrors.Validation("avgRating filter must be a number", err)
			}
			filter["avgRating"] = bson.M{"$gte": min}
		default:
			if path, ok := inFields[field]; ok {
				filter[path] = bson.M{"$in": values}
			}
		}
	}
	return filter, nil
}

// priceRanges turns "lo to hi" values into $or branches. Either bound may be omitted.
func priceRanges(values []string) (bson.A, error) {
	ranges := make(bson.A, 0, len(values))
	for _, v := range values {
		lo, hi, ok := strings.Cut(v, "to")
		if !ok {
			return nil, apperrors.Validation(fmt.Sprintf("Invalid price range %q, expected \"low to high\"", v), nil)
		}

		bounds := bson.M{}
		if lo = strings.TrimSpace(lo); lo != "" {
			n, err := strconv.ParseFloat(lo, 64)
			if err != nil {
				return nil, apperrors.Validation(fmt.Sprintf("Invalid price %q", lo), err)
			}
			bounds["$gte"] = n
		}
		if hi = strings.TrimSpace(hi); hi != "" {
			n, err := strconv.ParseFloat(hi, 64)
			if err != nil {
				return nil, apperrors.Validation(fmt.Sprintf("Invalid price %q", hi), err)
			}
			bounds["$lte"] = n
		}
		if len(bounds) == 0 {
			return nil, apperrors.Validation("Price range needs at least one bound", nil)
		}
		ranges = append(ranges, bson.M{"price": bounds})
	}
	return ranges, nil
}

func parseSort(raw string) (bson.D, error) {
	fields := splitValues(raw)
	if len(fields) == 0 {
		return bson.D{{Key: "price", Value: 1}}, nil
	}

	sort := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if strings.HasPrefix(f, "-") {
			dir = -1
			f = f[1:]
		}
		if f == "" || strings.HasPrefix(f, "$") {
			return nil, apperrors.Validation("Invalid sort field", nil)
		}
		sort = append(sort, bson.E{Key: f, Value: dir})
	}
	return sort, nil
}

func parseFields(raw string) (bson.M, error) {
	fields := splitValues(raw)
	if len(fields) == 0 {
		return bson.M{versionField: 0}, nil
	}

	projection := bson.M{}
	include, exclude := false, false
	for _, f := range fields {
		if strings.HasPrefix(f, "-") {
			f = f[1:]
			projection[f] = 0
			if f != "_id" {
				exclude = true
			}
		} else {
			projection[f] = 1
			include = true
		}
		if f == "" || strings.HasPrefix(f, "$") {
			return nil, apperrors.Validation("Invalid field selection", nil)
		}
	}
	if include && exclude {
		return nil, apperrors.Validation("Cannot mix included and excluded fields", nil)
	}
	return projection, nil
}

func parseLimit(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperrors.Validation("limit must be a positive integer", err)
	}
	return n, nil
}

func splitValues(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func isInclusion(projection bson.M) bool {
	for k, v := range projection {
		if k == "_id" {
			continue
		}
		if n, ok := v.(int); ok && n == 1 {
			return true
		}
	}
	return false
}

func withoutID(projection bson.M) bson.M {
	out := bson.M{}
	for k, v := range projection {
		if k != "_id" {
			out[k] = v
		}
	}
	return out
}
