package registry

import "encoding/json"

func marshalEvent(event map[string]any) ([]byte, error) {
	return json.Marshal(event)
}
