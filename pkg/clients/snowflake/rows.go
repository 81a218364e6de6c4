package snowflake

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseStageFiles reads the rows of a LIST @stage result
func ParseStageFiles(r *Result) ([]StageFile, error) {
	if r.ColumnIndex("name") < 0 {
		if len(r.Rows) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected LIST result: no name column in %v", r.Columns)
	}

	files := make([]StageFile, 0, len(r.Rows))
	for i := range r.Rows {
		f := StageFile{
			Name:         r.Value(i, "name"),
			MD5:          r.Value(i, "md5"),
			LastModified: r.Value(i, "last_modified"),
		}
		if size := r.Value(i, "size"); size != "" {
			n, err := strconv.ParseInt(size, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid size %q for %s: %w", size, f.Name, err)
			}
			f.Size = n
		}
		files = append(files, f)
	}
	return files, nil
}

// ParseIntegrationProperties reads the rows of a DESC INTEGRATION result keyed
// by upper-cased property name
func ParseIntegrationProperties(r *Result) (map[string]IntegrationProperty, error) {
	if r.ColumnIndex("property") < 0 || r.ColumnIndex("property_value") < 0 {
		return nil, fmt.Errorf("unexpected DESC INTEGRATION result columns: %v", r.Columns)
	}

	props := make(map[string]IntegrationProperty, len(r.Rows))
	for i := range r.Rows {
		p := IntegrationProperty{
			Property: r.Value(i, "property"),
			Type:     r.Value(i, "property_type"),
			Value:    r.Value(i, "property_value"),
			Default:  r.Value(i, "property_default"),
		}
		props[strings.ToUpper(p.Property)] = p
	}
	return props, nil
}
