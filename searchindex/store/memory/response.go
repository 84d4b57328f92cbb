package memory

import (
	"encoding/json"
	"net/http"

	"github.com/mycok/seqindexer/searchindex/index"
)

func jsonResponse(status int, v interface{}) *index.Response {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "exception", err.Error())
	}

	return &index.Response{StatusCode: status, Body: data}
}

func errorResponse(status int, errType, reason string) *index.Response {
	cause := map[string]string{"type": errType, "reason": reason}
	data, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"root_cause": []map[string]string{cause},
			"type":       errType,
			"reason":     reason,
		},
		"status": status,
	})

	return &index.Response{StatusCode: status, Body: data}
}

func indexNotFound(name string) *index.Response {
	return errorResponse(http.StatusNotFound, index.ErrTypeIndexNotFound, "no such index ["+name+"]")
}

func acknowledged() *index.Response {
	return jsonResponse(http.StatusOK, map[string]bool{"acknowledged": true})
}

func docResult(status int, name, id string, version int, result string) *index.Response {
	return jsonResponse(status, map[string]interface{}{
		"_index":   name,
		"_id":      id,
		"_version": version,
		"result":   result,
	})
}

// mergeInto recursively merges src into dst. Nested objects are merged
// field by field; any other value replaces the existing one.
func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		srcObj, srcIsObj := v.(map[string]interface{})
		dstObj, dstIsObj := dst[k].(map[string]interface{})

		if srcIsObj && dstIsObj {
			mergeInto(dstObj, srcObj)

			continue
		}

		dst[k] = deepCopyValue(v)
	}
}

func deepCopy(doc map[string]interface{}) map[string]interface{} {
	if doc == nil {
		return map[string]interface{}{}
	}

	return deepCopyValue(doc).(map[string]interface{})
}

func deepCopyValue(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = deepCopyValue(val)
		}

		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = deepCopyValue(val)
		}

		return out
	default:
		return v
	}
}
