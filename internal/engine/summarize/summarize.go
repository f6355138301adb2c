// Package summarize implements the Result Summarizer (C12): a pure,
// I/O-free mapping from a Result to a short human-oriented string for
// display or logging. It recognizes a handful of payload shapes
// (single entity, collection, dashboard, aggregate-with-top) by their
// keys and falls back to a generic key/value rendering otherwise.
package summarize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aishacrm/braid/internal/engine/core"
	"github.com/aishacrm/braid/internal/engine/counters"
)

const (
	minCollectionEntries = 5
	maxCollectionEntries = 25
	maxGenericFields      = 4
	maxTopEntries         = 3
)

// Summarize maps a Result into a short human string. Empty Ok payloads
// are reported as "no matching records", never as an error.
func Summarize(result core.Result) string {
	if !result.IsOk() {
		return summarizeError(result.Err)
	}
	return summarizeValue(result.Value)
}

func summarizeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "No matching records found."
	case counters.Snapshot:
		return summarizeSnapshot(v)
	case map[string]any:
		return summarizeMap(v)
	case []any:
		return summarizeCollectionAny(v, 0)
	case []map[string]any:
		return summarizeCollection(v, 0)
	case string:
		if v == "" {
			return "No matching records found."
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func summarizeSnapshot(s counters.Snapshot) string {
	if s.Calls == 0 {
		return "No activity recorded for this window."
	}
	return fmt.Sprintf("%d calls, %.1f%% success, %.1f%% cache hit", s.Calls, s.SuccessRatePct, s.CacheHitRatePct)
}

func summarizeMap(m map[string]any) string {
	if len(m) == 0 {
		return "No matching records found."
	}
	if isEntity(m) {
		return summarizeEntity(m)
	}
	if items, total, ok := collectionItems(m); ok {
		return summarizeCollection(items, total)
	}
	if isDashboard(m) {
		return summarizeDashboard(m)
	}
	if isAggregate(m) {
		return summarizeAggregate(m)
	}
	return summarizeGenericMap(m)
}

func isEntity(m map[string]any) bool {
	id, hasID := m["id"].(string)
	name, hasName := m["name"].(string)
	return hasID && hasName && id != "" && name != ""
}

func summarizeEntity(m map[string]any) string {
	id := m["id"].(string)
	name := m["name"].(string)

	var keys []string
	for k := range m {
		if k == "id" || k == "name" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > maxGenericFields {
		keys = keys[:maxGenericFields]
	}

	var fields []string
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", k, m[k]))
	}

	if len(fields) == 0 {
		return fmt.Sprintf("%s (id %s)", name, id)
	}
	return fmt.Sprintf("%s (id %s): %s", name, id, strings.Join(fields, ", "))
}

// collectionItems recognizes {"items": [...], "total": N} payloads.
func collectionItems(m map[string]any) (items []map[string]any, total int, ok bool) {
	raw, present := m["items"]
	if !present {
		return nil, 0, false
	}
	switch v := raw.(type) {
	case []map[string]any:
		items = v
	case []any:
		items = toMapSlice(v)
	default:
		return nil, 0, false
	}
	if n, ok := m["total"].(int); ok {
		total = n
	} else {
		total = len(items)
	}
	return items, total, true
}

func toMapSlice(raw []any) []map[string]any {
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func summarizeCollectionAny(raw []any, total int) string {
	return summarizeCollection(toMapSlice(raw), total)
}

// summarizeCollection dedupes by id, caps the rendered window to
// minCollectionEntries..maxCollectionEntries entries, and always
// includes ids so a caller can follow up on a specific record.
func summarizeCollection(items []map[string]any, total int) string {
	seen := make(map[string]bool, len(items))
	var deduped []map[string]any
	for _, item := range items {
		id, _ := item["id"].(string)
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		deduped = append(deduped, item)
	}

	if len(deduped) == 0 {
		return "No matching records found."
	}
	if total == 0 {
		total = len(deduped)
	}

	limit := maxCollectionEntries
	if len(deduped) < limit {
		limit = len(deduped)
	}
	shown := deduped[:limit]

	var labels []string
	for _, item := range shown {
		labels = append(labels, collectionLabel(item))
	}

	summary := fmt.Sprintf("%d record(s): %s", total, strings.Join(labels, "; "))
	if total > len(shown) {
		summary += fmt.Sprintf(" (+%d more)", total-len(shown))
	}
	return summary
}

func collectionLabel(item map[string]any) string {
	id, _ := item["id"].(string)
	if name, ok := item["name"].(string); ok && name != "" {
		if id != "" {
			return fmt.Sprintf("%s (%s)", name, id)
		}
		return name
	}
	if id != "" {
		return id
	}
	return "unidentified record"
}

func isDashboard(m map[string]any) bool {
	flag, _ := m["dashboard"].(bool)
	_, hasCounts := m["counts"].(map[string]any)
	return flag && hasCounts
}

func summarizeDashboard(m map[string]any) string {
	counts := m["counts"].(map[string]any)
	var keys []string
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, counts[k]))
	}
	return "Dashboard: " + strings.Join(parts, ", ")
}

func isAggregate(m map[string]any) bool {
	flag, _ := m["aggregate"].(bool)
	return flag
}

func summarizeAggregate(m map[string]any) string {
	total := m["total"]
	summary := fmt.Sprintf("Total: %v", total)

	top, ok := m["top"].([]any)
	if !ok || len(top) == 0 {
		return summary
	}
	topItems := toMapSlice(top)
	if len(topItems) > maxTopEntries {
		topItems = topItems[:maxTopEntries]
	}
	var labels []string
	for _, item := range topItems {
		labels = append(labels, collectionLabel(item))
	}
	if len(labels) == 0 {
		return summary
	}
	return fmt.Sprintf("%s. Top: %s", summary, strings.Join(labels, ", "))
}

func summarizeGenericMap(m map[string]any) string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > maxGenericFields {
		keys = keys[:maxGenericFields]
	}
	var fields []string
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(fields, ", ")
}

// summarizeError buckets an EngineError into a short, user-facing
// message. APIError additionally buckets by the HTTP-status-shaped
// Code field: 400 -> invalid, 401/403 -> access, 404 -> not-found,
// >=500 -> server-error.
func summarizeError(err *core.EngineError) string {
	if err == nil {
		return "No matching records found."
	}

	switch err.Kind {
	case core.ErrNotFound:
		return "No records found matching your request."
	case core.ErrValidationError:
		return "Invalid input: " + err.Message
	case core.ErrPermissionDenied, core.ErrAuthorizationError, core.ErrInsufficientPermissions:
		return "Access denied: " + err.Message
	case core.ErrNetworkError:
		return "Network error, please try again."
	case core.ErrRateLimitExceeded:
		return "Rate limit exceeded, please slow down."
	case core.ErrConfirmationRequired:
		return "This action requires explicit confirmation."
	case core.ErrAPIError:
		return summarizeAPIError(err)
	default:
		return fmt.Sprintf("%s: %s", err.Kind, err.Message)
	}
}

func summarizeAPIError(err *core.EngineError) string {
	status, convErr := strconv.Atoi(err.Code)
	if convErr != nil {
		return "Service error: " + err.Message
	}
	switch {
	case status == 400:
		return "Invalid input: " + err.Message
	case status == 401 || status == 403:
		return "Access denied: " + err.Message
	case status == 404:
		return "No records found matching your request."
	case status >= 500:
		return "Server error, please try again later."
	default:
		return "Service error: " + err.Message
	}
}
