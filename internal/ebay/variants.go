package ebay

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mayeshco/ebay-scraper/internal/fetch"
	"github.com/mayeshco/ebay-scraper/internal/models"
)

// variantMarker tags the script block that embeds the variant state blob.
const variantMarker = "MSKU"

// ParseVariants decodes the embedded variant matrix from a product document.
// Documents without variant data return an empty slice and no error; a
// present but undecodable blob returns an error so the caller can degrade.
func ParseVariants(doc *fetch.Document) ([]models.VariantRecord, error) {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), variantMarker) {
			script = s.Text()
			return false
		}
		return true
	})
	if script == "" {
		return []models.VariantRecord{}, nil
	}

	var decoded []any
	for _, obj := range scanJSONObjects(script) {
		decoded = append(decoded, obj)
	}

	matches := nestedLookup(variantMarker, decoded)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no %q object embedded in script", variantMarker)
	}
	data, ok := matches[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%q entry is not an object", variantMarker)
	}

	selections := buildSelections(data)

	variantMaps := nestedLookup("variationsMap", data)
	if len(variantMaps) == 0 {
		return nil, fmt.Errorf("no variations map in %q data", variantMarker)
	}
	variantMap, ok := variantMaps[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("variations map is not an object")
	}

	records := make([]models.VariantRecord, 0, len(variantMap))
	for id, raw := range variantMap {
		variant, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, buildVariantRecord(id, variant, selections))
	}

	// Map iteration order is random; emit variants in a stable order.
	sort.Slice(records, func(i, j int) bool {
		a, aerr := strconv.ParseInt(records[i].ID, 10, 64)
		b, berr := strconv.ParseInt(records[j].ID, 10, 64)
		if aerr == nil && berr == nil {
			return a < b
		}
		return records[i].ID < records[j].ID
	})

	return records, nil
}

// selection is one selectable value: its human-readable name, the dimension
// label it belongs to, and the set of variant ids it applies to.
type selection struct {
	name     string
	label    string
	variants map[int64]bool
}

func buildSelections(data map[string]any) []selection {
	// valueId -> dimension display label, from the menus substructure.
	labels := map[int64]string{}
	if menus, ok := data["selectMenus"].([]any); ok {
		for _, raw := range menus {
			menu, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			label, _ := menu["displayLabel"].(string)
			ids, _ := menu["menuItemValueIds"].([]any)
			for _, id := range ids {
				if n, ok := id.(float64); ok {
					labels[int64(n)] = label
				}
			}
		}
	}

	var selections []selection
	menuItems, _ := data["menuItemMap"].(map[string]any)
	for _, raw := range menuItems {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := item["valueName"].(string)
		valueID, _ := item["valueId"].(float64)

		variants := map[int64]bool{}
		if ids, ok := item["matchingVariationIds"].([]any); ok {
			for _, id := range ids {
				if n, ok := id.(float64); ok {
					variants[int64(n)] = true
				}
			}
		}

		selections = append(selections, selection{
			name:     name,
			label:    labels[int64(valueID)],
			variants: variants,
		})
	}
	return selections
}

// buildVariantRecord reads pricing and stock straight from the variant's
// nested fields. A variant matching zero selections keeps an empty attribute
// map. Absent price fields stay at their zero values.
func buildVariantRecord(id string, variant map[string]any, selections []selection) models.VariantRecord {
	record := models.VariantRecord{
		ID:         id,
		Attributes: map[string]string{},
	}

	if idNum, err := strconv.ParseInt(id, 10, 64); err == nil {
		for _, sel := range selections {
			if sel.variants[idNum] {
				record.Attributes[sel.label] = sel.name
			}
		}
	}

	if price := dig(variant, "binModel", "price", "value"); price != nil {
		if v, err := CleanPrice(price["convertedFromValue"]); err == nil {
			record.PriceOriginal = int(v)
		}
		record.CurrencyOriginal, _ = price["convertedFromCurrency"].(string)
		if v, err := CleanPrice(price["value"]); err == nil {
			record.PriceConverted = int(v)
		}
		record.CurrencyConverted, _ = price["currency"].(string)
	}

	if quantity := dig(variant, "quantity"); quantity != nil {
		record.OutOfStock, _ = quantity["outOfStock"].(bool)
	}

	return record
}

// scanJSONObjects walks the text left to right, attempting a strict decode
// at every '{'. Each success yields the decoded object and skips past its
// span; each failure advances one byte. This finds every top-level JSON
// object embedded anywhere in surrounding script code.
func scanJSONObjects(text string) []map[string]any {
	var objects []map[string]any
	pos := 0
	for pos < len(text) {
		offset := strings.IndexByte(text[pos:], '{')
		if offset < 0 {
			break
		}
		start := pos + offset

		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			pos = start + 1
			continue
		}
		objects = append(objects, obj)
		pos = start + int(dec.InputOffset())
	}
	return objects
}

// nestedLookup collects every value stored under key at any depth.
func nestedLookup(key string, value any) []any {
	var found []any
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if k == key {
				found = append(found, child)
			}
			found = append(found, nestedLookup(key, child)...)
		}
	case []any:
		for _, child := range v {
			found = append(found, nestedLookup(key, child)...)
		}
	}
	return found
}

// dig descends through nested objects, returning nil when any step is
// missing or not an object.
func dig(m map[string]any, keys ...string) map[string]any {
	current := m
	for _, key := range keys {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current
}
