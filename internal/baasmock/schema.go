package baasmock

import (
	"fmt"
	"time"
)

type attrKind int

const (
	kindString attrKind = iota
	kindNumber
	kindInteger
	kindBool
	kindDatetime
	kindStringArray
)

type attribute struct {
	name     string
	kind     attrKind
	required bool
	min, max *float64
}

func bounded(lo, hi float64) (*float64, *float64) { return &lo, &hi }

func score(name string) attribute {
	lo, hi := bounded(0, 10)
	return attribute{name: name, kind: kindNumber, required: true, min: lo, max: hi}
}

func coordinate(name string, limit float64) attribute {
	lo, hi := bounded(-limit, limit)
	return attribute{name: name, kind: kindNumber, required: true, min: lo, max: hi}
}

// schemas mirrors the collections provisioned for the app.
var schemas = map[string][]attribute{
	"markets": {
		{name: "name", kind: kindString, required: true},
		{name: "description", kind: kindString},
		coordinate("latitude", 90),
		coordinate("longitude", 180),
		{name: "address", kind: kindString, required: true},
		{name: "city", kind: kindString, required: true},
		{name: "postalCode", kind: kindString},
		{name: "startDate", kind: kindDatetime, required: true},
		{name: "endDate", kind: kindDatetime, required: true},
		{name: "isActive", kind: kindBool, required: true},
	},
	"stalls": {
		{name: "marketId", kind: kindString, required: true},
		{name: "vendorId", kind: kindString},
		{name: "name", kind: kindString, required: true},
		{name: "description", kind: kindString},
		{name: "phone", kind: kindString},
		{name: "photoIds", kind: kindStringArray},
	},
	"ratings": {
		{name: "stallId", kind: kindString, required: true},
		{name: "userId", kind: kindString, required: true},
		score("selection"),
		score("friendliness"),
		score("creativity"),
		{name: "comment", kind: kindString},
	},
	"photos": {
		{name: "rawFileId", kind: kindString, required: true},
		{name: "processedFileId", kind: kindString},
		{name: "filename", kind: kindString, required: true},
		{name: "mimeType", kind: kindString, required: true},
		{name: "size", kind: kindInteger, required: true},
		{name: "userId", kind: kindString, required: true},
		{name: "stallId", kind: kindString},
		{name: "uploadedAt", kind: kindDatetime, required: true},
		{name: "caption", kind: kindString},
		{name: "processingStatus", kind: kindString, required: true},
		{name: "faceCount", kind: kindInteger},
		{name: "processingStartedAt", kind: kindDatetime},
		{name: "processingCompletedAt", kind: kindDatetime},
	},
}

// validateDocument checks data against the collection's attributes.
func validateDocument(collection string, data map[string]any) error {
	attrs, ok := schemas[collection]
	if !ok {
		return fmt.Errorf("collection %q not found", collection)
	}
	known := make(map[string]attribute, len(attrs))
	for _, a := range attrs {
		known[a.name] = a
	}
	for key := range data {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("unknown attribute: %q", key)
		}
	}
	for _, a := range attrs {
		v, present := data[a.name]
		if !present || v == nil {
			if a.required {
				return fmt.Errorf("missing required attribute %q", a.name)
			}
			continue
		}
		if err := checkKind(a, v); err != nil {
			return err
		}
	}
	return nil
}

func checkKind(a attribute, v any) error {
	switch a.kind {
	case kindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("attribute %q must be a string", a.name)
		}
	case kindNumber, kindInteger:
		n, ok := v.(float64)
		if !ok {
			return fmt.Errorf("attribute %q must be a number", a.name)
		}
		if a.kind == kindInteger && n != float64(int64(n)) {
			return fmt.Errorf("attribute %q must be an integer", a.name)
		}
		if a.min != nil && n < *a.min {
			return fmt.Errorf("attribute %q must be at least %g", a.name, *a.min)
		}
		if a.max != nil && n > *a.max {
			return fmt.Errorf("attribute %q must be at most %g", a.name, *a.max)
		}
	case kindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("attribute %q must be a boolean", a.name)
		}
	case kindDatetime:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("attribute %q must be a datetime string", a.name)
		}
		if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("attribute %q must be RFC3339: %v", a.name, err)
		}
	case kindStringArray:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("attribute %q must be an array", a.name)
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("attribute %q must contain strings", a.name)
			}
		}
	}
	return nil
}
